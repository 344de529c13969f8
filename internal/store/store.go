// Package store provides campaign persistence interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/ashureev/taleweaver/internal/domain"
)

var (
	// ErrNotFound is returned when no campaign has the requested id.
	ErrNotFound = domain.ErrNotFound
	// ErrDuplicate is returned when inserting a campaign whose id is taken.
	ErrDuplicate = errors.New("campaign already exists")
)

// Repository defines the interface for persisting campaigns.
type Repository interface {
	// ListCampaigns returns a summary of every campaign in insertion order.
	ListCampaigns(ctx context.Context) ([]domain.Summary, error)

	// GetCampaign retrieves a campaign by id. Returns ErrNotFound when absent.
	GetCampaign(ctx context.Context, id string) (*domain.Campaign, error)

	// InsertCampaign appends a new campaign to the store.
	InsertCampaign(ctx context.Context, campaign *domain.Campaign) error

	// UpdateCampaign replaces a stored campaign in place.
	// Returns ErrNotFound when the id is unknown.
	UpdateCampaign(ctx context.Context, campaign *domain.Campaign) error

	// Ping verifies the backing storage is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying storage.
	Close() error
}

// Open returns the repository for the configured driver ("json" or "sqlite").
func Open(driver, jsonPath, dbPath string) (Repository, error) {
	switch driver {
	case "", "json":
		return NewJSON(jsonPath)
	case "sqlite":
		return NewSQLite(dbPath)
	default:
		return nil, errors.New("unknown store driver: " + driver)
	}
}
