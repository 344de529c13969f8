package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/ashureev/taleweaver/internal/domain"
	"github.com/moby/sys/atomicwriter"
)

// document is the on-disk shape of the campaign store.
type document struct {
	Campaigns []*domain.Campaign `json:"campaigns"`
}

// JSONStore implements Repository on a single JSON document.
// Every operation reads the whole document; mutations rewrite it atomically.
type JSONStore struct {
	path string
	mu   sync.Mutex
}

// NewJSON creates a JSON-file-backed repository, writing an empty document
// when the file does not exist yet.
func NewJSON(path string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	s := &JSONStore{path: path}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := s.writeAll(&document{Campaigns: []*domain.Campaign{}}); err != nil {
			return nil, fmt.Errorf("initialize store: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat store: %w", err)
	}

	if _, err := s.readAll(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *JSONStore) readAll() (*document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}

	var doc document
	if len(data) > 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode store: %w", err)
		}
	}
	if doc.Campaigns == nil {
		doc.Campaigns = []*domain.Campaign{}
	}
	return &doc, nil
}

func (s *JSONStore) writeAll(doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	if err := atomicwriter.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	return nil
}

func find(doc *document, id string) int {
	for i, c := range doc.Campaigns {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// ListCampaigns returns campaign summaries in insertion order.
func (s *JSONStore) ListCampaigns(_ context.Context) ([]domain.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readAll()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Summary, 0, len(doc.Campaigns))
	for _, c := range doc.Campaigns {
		out = append(out, c.Summary())
	}
	return out, nil
}

// GetCampaign retrieves a campaign by id.
func (s *JSONStore) GetCampaign(_ context.Context, id string) (*domain.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readAll()
	if err != nil {
		return nil, err
	}
	i := find(doc, id)
	if i < 0 {
		return nil, ErrNotFound
	}
	c := doc.Campaigns[i]
	if c.Messages == nil {
		c.Messages = []domain.Turn{}
	}
	return c, nil
}

// InsertCampaign appends a campaign to the document.
func (s *JSONStore) InsertCampaign(_ context.Context, campaign *domain.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readAll()
	if err != nil {
		return err
	}
	if find(doc, campaign.ID) >= 0 {
		return ErrDuplicate
	}
	doc.Campaigns = append(doc.Campaigns, campaign.Clone())
	return s.writeAll(doc)
}

// UpdateCampaign replaces the stored campaign with the same id.
func (s *JSONStore) UpdateCampaign(_ context.Context, campaign *domain.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readAll()
	if err != nil {
		return err
	}
	i := find(doc, campaign.ID)
	if i < 0 {
		return ErrNotFound
	}
	doc.Campaigns[i] = campaign.Clone()
	return s.writeAll(doc)
}

// Ping checks that the document is still readable.
func (s *JSONStore) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); err != nil {
		return fmt.Errorf("stat store: %w", err)
	}
	return nil
}

// Close is a no-op; the document is closed after every operation.
func (s *JSONStore) Close() error {
	return nil
}
