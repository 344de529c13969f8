package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ashureev/taleweaver/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	writeMu sync.Mutex // serializes writers to avoid SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS campaigns (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		character_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		messages_json TEXT NOT NULL,
		current_location TEXT NOT NULL,
		active_quest TEXT,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ListCampaigns returns campaign summaries in insertion order.
func (s *SQLiteStore) ListCampaigns(ctx context.Context) ([]domain.Summary, error) {
	query := `
		SELECT id, character_json, created_at, json_array_length(messages_json)
		FROM campaigns ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query campaigns: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close campaign rows", "error", closeErr)
		}
	}()

	summaries := []domain.Summary{}
	for rows.Next() {
		var summary domain.Summary
		var characterJSON string
		var createdAt int64

		if err := rows.Scan(&summary.ID, &characterJSON, &createdAt, &summary.MessageCount); err != nil {
			return nil, fmt.Errorf("scan campaign row: %w", err)
		}
		if err := json.Unmarshal([]byte(characterJSON), &summary.Character); err != nil {
			return nil, fmt.Errorf("decode character for %s: %w", summary.ID, err)
		}
		summary.CreatedAt = time.Unix(0, createdAt).UTC()
		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate campaigns: %w", err)
	}
	return summaries, nil
}

// GetCampaign retrieves a campaign by id.
func (s *SQLiteStore) GetCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	query := `
		SELECT id, character_json, created_at, messages_json, current_location, active_quest
		FROM campaigns WHERE id = ?`

	row := s.db.QueryRowContext(ctx, query, id)

	var campaign domain.Campaign
	var characterJSON, messagesJSON string
	var createdAt int64
	var activeQuest sql.NullString

	err := row.Scan(&campaign.ID, &characterJSON, &createdAt, &messagesJSON, &campaign.CurrentLocation, &activeQuest)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan campaign: %w", err)
	}

	if err := json.Unmarshal([]byte(characterJSON), &campaign.Character); err != nil {
		return nil, fmt.Errorf("decode character: %w", err)
	}
	if err := json.Unmarshal([]byte(messagesJSON), &campaign.Messages); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	if campaign.Messages == nil {
		campaign.Messages = []domain.Turn{}
	}
	campaign.CreatedAt = time.Unix(0, createdAt).UTC()
	if activeQuest.Valid {
		campaign.ActiveQuest = &activeQuest.String
	}

	return &campaign, nil
}

// InsertCampaign stores a new campaign row.
func (s *SQLiteStore) InsertCampaign(ctx context.Context, campaign *domain.Campaign) error {
	characterJSON, messagesJSON, err := encodeCampaign(campaign)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO campaigns (id, character_json, created_at, messages_json, current_location, active_quest, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	return s.withRetry(ctx, "insert campaign", func() error {
		_, err := s.db.ExecContext(ctx, query,
			campaign.ID, characterJSON, campaign.CreatedAt.UnixNano(), messagesJSON,
			campaign.CurrentLocation, nullableQuest(campaign.ActiveQuest), time.Now().UnixNano(),
		)
		if isConstraintError(err) {
			return ErrDuplicate
		}
		return err
	})
}

// UpdateCampaign rewrites the mutable columns of a campaign row.
func (s *SQLiteStore) UpdateCampaign(ctx context.Context, campaign *domain.Campaign) error {
	_, messagesJSON, err := encodeCampaign(campaign)
	if err != nil {
		return err
	}

	query := `
		UPDATE campaigns SET messages_json = ?, current_location = ?, active_quest = ?, updated_at = ?
		WHERE id = ?`

	return s.withRetry(ctx, "update campaign", func() error {
		result, err := s.db.ExecContext(ctx, query,
			messagesJSON, campaign.CurrentLocation, nullableQuest(campaign.ActiveQuest),
			time.Now().UnixNano(), campaign.ID,
		)
		if err != nil {
			return err
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if rows == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// withRetry runs a write with exponential backoff on SQLITE_BUSY errors.
func (s *SQLiteStore) withRetry(ctx context.Context, op string, fn func() error) error {
	const maxRetries = 3
	baseDelay := 100 * time.Millisecond

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var err error
	for i := 0; i < maxRetries; i++ {
		err = fn()
		if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicate) {
			return err
		}
		if !IsConflictError(err) || i == maxRetries-1 {
			break
		}

		delay := baseDelay * time.Duration(1<<i) // 100ms, 200ms, 400ms
		slog.Debug("sqlite write busy, retrying", "op", op, "attempt", i+1, "delay", delay)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

func encodeCampaign(campaign *domain.Campaign) (string, string, error) {
	characterJSON, err := json.Marshal(campaign.Character)
	if err != nil {
		return "", "", fmt.Errorf("encode character: %w", err)
	}
	messages := campaign.Messages
	if messages == nil {
		messages = []domain.Turn{}
	}
	messagesJSON, err := json.Marshal(messages)
	if err != nil {
		return "", "", fmt.Errorf("encode messages: %w", err)
	}
	return string(characterJSON), string(messagesJSON), nil
}

func nullableQuest(quest *string) interface{} {
	if quest == nil {
		return nil
	}
	return *quest
}
