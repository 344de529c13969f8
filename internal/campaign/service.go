// Package campaign runs campaign sessions: it creates campaigns, records
// player actions and asks the completion provider for the next scene.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/taleweaver/internal/domain"
	"github.com/ashureev/taleweaver/internal/llm"
	"github.com/ashureev/taleweaver/internal/metrics"
	"github.com/ashureev/taleweaver/internal/prompt"
	"github.com/ashureev/taleweaver/internal/store"
	"github.com/ashureev/taleweaver/internal/transcript"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when the campaign id is unknown.
	ErrNotFound = store.ErrNotFound
	// ErrProvider is returned when the completion provider fails.
	ErrProvider = llm.ErrProvider
)

// Publisher receives every turn appended to a campaign.
type Publisher interface {
	PublishTurn(campaignID string, turn domain.Turn)
}

type noopPublisher struct{}

func (noopPublisher) PublishTurn(string, domain.Turn) {}

// Service manages campaign sessions.
type Service struct {
	repo      store.Repository
	provider  llm.Provider
	publisher Publisher
	log       transcript.Logger
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string

	// locks serializes read-modify-write on a campaign id.
	locks sync.Map
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets the live turn publisher.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithTranscript sets the transcript logger.
func WithTranscript(l transcript.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides campaign id generation.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// NewService creates a campaign service.
func NewService(repo store.Repository, provider llm.Provider, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		provider:  provider,
		publisher: noopPublisher{},
		log:       transcript.Noop(),
		logger:    slog.Default(),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) lock(id string) func() {
	v, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Create starts a new campaign for character and returns its id and the
// opening scene. Nothing is persisted when the provider fails.
func (s *Service) Create(ctx context.Context, character domain.Character) (string, string, error) {
	id := s.newID()
	unlock := s.lock(id)
	defer unlock()

	c := domain.NewCampaign(id, character, s.now())

	opening := []domain.Turn{{Role: domain.RoleUser, Content: llm.OpeningInstruction, Timestamp: c.CreatedAt}}
	messages, err := prompt.Build(prompt.OpeningContext(character), opening)
	if err != nil {
		return "", "", fmt.Errorf("build opening prompt: %w", err)
	}

	narrative, err := s.generate(ctx, llm.Request{Messages: messages, Character: character, Turn: 0})
	if err != nil {
		s.logger.Error("Failed to generate opening scene", "error", err, "campaign_id", id)
		return "", "", fmt.Errorf("generate opening: %w", err)
	}

	turn := c.Append(domain.RoleAssistant, narrative, s.now())
	if err := s.repo.InsertCampaign(ctx, c); err != nil {
		return "", "", fmt.Errorf("insert campaign: %w", err)
	}

	metrics.CampaignsCreated.Inc()
	s.logger.Info("Campaign created", "campaign_id", id, "character", character.Name, "provider", s.provider.Name())
	s.record(id, turn)
	return id, narrative, nil
}

// Get returns the campaign with the given id.
func (s *Service) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	c, err := s.repo.GetCampaign(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get campaign %s: %w", id, err)
	}
	return c, nil
}

// List returns every campaign summary in creation order.
func (s *Service) List(ctx context.Context) ([]domain.Summary, error) {
	summaries, err := s.repo.ListCampaigns(ctx)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	return summaries, nil
}

// SubmitAction records a player action, asks the provider for the next scene
// and records it. The action turn stays persisted when the provider fails.
func (s *Service) SubmitAction(ctx context.Context, id, action string) (string, *domain.Campaign, error) {
	unlock := s.lock(id)
	defer unlock()

	c, err := s.repo.GetCampaign(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			metrics.Actions.WithLabelValues(metrics.ResultNotFound).Inc()
		} else {
			metrics.Actions.WithLabelValues(metrics.ResultStoreError).Inc()
		}
		return "", nil, fmt.Errorf("get campaign %s: %w", id, err)
	}

	userTurn := c.Append(domain.RoleUser, action, s.now())
	if err := s.repo.UpdateCampaign(ctx, c); err != nil {
		metrics.Actions.WithLabelValues(metrics.ResultStoreError).Inc()
		return "", nil, fmt.Errorf("save action: %w", err)
	}
	s.record(id, userTurn)

	messages, err := prompt.Build(prompt.ActionContext(c), prompt.Window(c.Messages, prompt.WindowSize))
	if err != nil {
		return "", nil, fmt.Errorf("build action prompt: %w", err)
	}

	narrative, err := s.generate(ctx, llm.Request{
		Messages:  messages,
		Character: c.Character,
		Turn:      len(c.Messages),
	})
	if err != nil {
		metrics.Actions.WithLabelValues(metrics.ResultProviderError).Inc()
		s.logger.Error("Failed to generate response", "error", err, "campaign_id", id)
		return "", nil, fmt.Errorf("generate response: %w", err)
	}

	dmTurn := c.Append(domain.RoleAssistant, narrative, s.now())
	if err := s.repo.UpdateCampaign(ctx, c); err != nil {
		metrics.Actions.WithLabelValues(metrics.ResultStoreError).Inc()
		return "", nil, fmt.Errorf("save response: %w", err)
	}
	s.record(id, dmTurn)

	metrics.Actions.WithLabelValues(metrics.ResultOK).Inc()
	s.logger.Debug("Action processed", "campaign_id", id, "messages", len(c.Messages))
	return narrative, c, nil
}

func (s *Service) generate(ctx context.Context, req llm.Request) (string, error) {
	start := time.Now()
	text, err := s.provider.Generate(ctx, req)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.GenerationDuration.WithLabelValues(s.provider.Name(), outcome).Observe(time.Since(start).Seconds())
	return text, err
}

func (s *Service) record(id string, turn domain.Turn) {
	s.publisher.PublishTurn(id, turn)

	entry := transcript.Entry{
		CampaignID: id,
		Role:       turn.Role,
		Content:    turn.Content,
		Timestamp:  turn.Timestamp,
	}
	if turn.Role == domain.RoleAssistant {
		entry.Provider = s.provider.Name()
	}
	s.log.Log(entry)
}
