package campaign

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ashureev/taleweaver/internal/domain"
	"github.com/ashureev/taleweaver/internal/llm"
	"github.com/ashureev/taleweaver/internal/store"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	mu       sync.Mutex
	requests []llm.Request
	fail     bool
	reply    string
}

func (f *fakeProvider) Generate(_ context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.fail {
		return "", &llm.ProviderError{Backend: llm.KindOpenAI, Err: errors.New("upstream unavailable")}
	}
	if f.reply != "" {
		return f.reply, nil
	}
	return fmt.Sprintf("scene %d", len(f.requests)), nil
}

func (f *fakeProvider) Name() string { return "fake" }
func (f *fakeProvider) Close() error { return nil }

func (f *fakeProvider) last() llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func (f *fakeProvider) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

type recordingPublisher struct {
	mu    sync.Mutex
	turns []domain.Turn
}

func (p *recordingPublisher) PublishTurn(_ string, turn domain.Turn) {
	p.mu.Lock()
	p.turns = append(p.turns, turn)
	p.mu.Unlock()
}

func newRepo(t *testing.T) store.Repository {
	t.Helper()
	repo, err := store.NewJSON(filepath.Join(t.TempDir(), "campaigns.json"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

var finn = domain.Character{Name: "Finn", Race: "Elf", Class: "Rogue"}

func TestCreateWithFallbackOpensScene(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := NewService(newRepo(t), llm.NewFallback())

	id, opening, err := svc.Create(ctx, finn)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.Contains(t, opening, "Finn")

	c, err := svc.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, c.Messages, 1)
	require.Equal(t, domain.RoleAssistant, c.Messages[0].Role)
	require.Equal(t, opening, c.Messages[0].Content)
	require.Equal(t, domain.DefaultLocation, c.CurrentLocation)
	require.Nil(t, c.ActiveQuest)
	require.Equal(t, finn, c.Character)
}

func TestCreateSendsOpeningInstruction(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{}
	svc := NewService(newRepo(t), provider, WithIDGenerator(func() string { return "fixed-id" }))

	id, _, err := svc.Create(context.Background(), finn)
	require.NoError(t, err)
	require.Equal(t, "fixed-id", id)

	req := provider.last()
	require.Len(t, req.Messages, 2)
	require.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	require.Contains(t, req.Messages[0].Content, "New campaign starting. Character: Finn, a level 1 Elf Rogue.")
	require.Contains(t, req.Messages[0].Content, domain.DefaultBackstory)
	require.Equal(t, llm.Message{Role: llm.RoleUser, Content: llm.OpeningInstruction}, req.Messages[1])
	require.Equal(t, 0, req.Turn)
}

func TestCreateProviderFailurePersistsNothing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := NewService(newRepo(t), &fakeProvider{fail: true})

	_, _, err := svc.Create(ctx, finn)
	require.ErrorIs(t, err, ErrProvider)

	summaries, err := svc.List(ctx)
	require.NoError(t, err)
	require.Empty(t, summaries)
}

func TestSubmitActionAppendsTurns(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	provider := &fakeProvider{}
	pub := &recordingPublisher{}
	svc := NewService(newRepo(t), provider, WithPublisher(pub))

	id, _, err := svc.Create(ctx, finn)
	require.NoError(t, err)

	narrative, c, err := svc.SubmitAction(ctx, id, "I look around")
	require.NoError(t, err)
	require.Equal(t, "scene 2", narrative)
	require.Len(t, c.Messages, 3)
	require.Equal(t, domain.RoleAssistant, c.Messages[0].Role)
	require.Equal(t, domain.Turn{Role: domain.RoleUser, Content: "I look around", Timestamp: c.Messages[1].Timestamp}, c.Messages[1])
	require.Equal(t, domain.RoleAssistant, c.Messages[2].Role)
	require.Equal(t, narrative, c.Messages[2].Content)

	req := provider.last()
	require.Contains(t, req.Messages[0].Content, "Character: Finn, Elf Rogue.\nCurrent location: Tavern\nTotal messages: 2")
	require.Equal(t, llm.Message{Role: llm.RoleUser, Content: "I look around"}, req.Messages[len(req.Messages)-1])
	require.Equal(t, 2, req.Turn)

	stored, err := svc.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, stored.Messages, 3)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.turns, 3)
	require.Equal(t, domain.RoleUser, pub.turns[1].Role)
}

func TestSubmitActionAcceptsEmptyText(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := NewService(newRepo(t), &fakeProvider{})
	id, _, err := svc.Create(ctx, finn)
	require.NoError(t, err)

	_, c, err := svc.SubmitAction(ctx, id, "")
	require.NoError(t, err)
	require.Equal(t, "", c.Messages[1].Content)
}

func TestSubmitActionWindowsHistory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	provider := &fakeProvider{}
	svc := NewService(newRepo(t), provider)
	id, _, err := svc.Create(ctx, finn)
	require.NoError(t, err)

	for i := range 8 {
		_, _, err := svc.SubmitAction(ctx, id, fmt.Sprintf("action %d", i))
		require.NoError(t, err)
	}

	req := provider.last()
	require.Len(t, req.Messages, 11)
	require.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	require.Contains(t, req.Messages[0].Content, "Total messages: 16")
	require.Equal(t, "action 7", req.Messages[10].Content)
}

func TestSubmitActionUnknownCampaign(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	provider := &fakeProvider{}
	svc := NewService(newRepo(t), provider)

	_, _, err := svc.SubmitAction(ctx, "missing", "hello")
	require.ErrorIs(t, err, ErrNotFound)
	require.Empty(t, provider.requests)

	summaries, err := svc.List(ctx)
	require.NoError(t, err)
	require.Empty(t, summaries)
}

func TestSubmitActionProviderFailureKeepsUserTurn(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	provider := &fakeProvider{}
	svc := NewService(newRepo(t), provider)
	id, _, err := svc.Create(ctx, finn)
	require.NoError(t, err)

	provider.setFail(true)
	_, _, err = svc.SubmitAction(ctx, id, "I attack the goblin")
	require.ErrorIs(t, err, ErrProvider)

	var perr *llm.ProviderError
	require.ErrorAs(t, err, &perr)

	c, err := svc.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, c.Messages, 2)
	require.Equal(t, "I attack the goblin", c.Messages[1].Content)
}

func TestSubmitActionConcurrentSameCampaign(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := NewService(newRepo(t), &fakeProvider{reply: "ok"})
	id, _, err := svc.Create(ctx, finn)
	require.NoError(t, err)

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.SubmitAction(ctx, id, fmt.Sprintf("move %d", i))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	c, err := svc.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, c.Messages, 1+2*workers)
	for i := 1; i < len(c.Messages); i += 2 {
		require.Equal(t, domain.RoleUser, c.Messages[i].Role)
		require.True(t, strings.HasPrefix(c.Messages[i].Content, "move "))
		require.Equal(t, domain.RoleAssistant, c.Messages[i+1].Role)
	}
}

func TestListReturnsCreationOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := NewService(newRepo(t), llm.NewFallback())

	var ids []string
	for _, name := range []string{"Finn", "Mira", "Tor"} {
		id, _, err := svc.Create(ctx, domain.Character{Name: name, Race: "Human", Class: "Fighter"})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	summaries, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 3)
	for i, s := range summaries {
		require.Equal(t, ids[i], s.ID)
		require.Equal(t, 1, s.MessageCount)
	}
}
