package live

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/taleweaver/internal/domain"
	"github.com/ashureev/taleweaver/internal/metrics"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
)

const (
	writeTimeout      = 10 * time.Second
	keepaliveInterval = 30 * time.Second
)

// CampaignSource loads the campaign a client subscribes to.
type CampaignSource interface {
	Get(ctx context.Context, id string) (*domain.Campaign, error)
}

// Handler serves live campaign feeds over WebSocket.
type Handler struct {
	hub            *Hub
	source         CampaignSource
	originPatterns []string
}

// NewHandler creates a WebSocket feed handler.
func NewHandler(hub *Hub, source CampaignSource, originPatterns []string) *Handler {
	if len(originPatterns) == 0 {
		originPatterns = []string{"*"}
	}
	return &Handler{hub: hub, source: source, originPatterns: originPatterns}
}

// RegisterRoutes registers the feed endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/campaigns/{id}", h.ServeHTTP)
}

// ServeHTTP sends a snapshot of the campaign, then every new turn until the
// client disconnects.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "id")

	campaign, err := h.source.Get(r.Context(), campaignID)
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, `{"error": "Campaign not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Failed to load campaign for live feed", "error", err, "campaign_id", campaignID)
		http.Error(w, `{"error": "Server error"}`, http.StatusInternalServerError)
		return
	}

	events, cancel := h.hub.Subscribe(campaignID)
	defer cancel()

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "campaign_id", campaignID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "feed ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "campaign_id", campaignID)
		}
	}()

	metrics.LiveSubscribers.Inc()
	defer metrics.LiveSubscribers.Dec()
	slog.Info("Live feed connected", "campaign_id", campaignID)

	// Clients only listen; CloseRead handles control frames and cancels ctx
	// once the peer goes away.
	ctx := ws.CloseRead(r.Context())

	if err := writeEvent(ctx, ws, Event{Type: EventSnapshot, CampaignID: campaignID, Campaign: campaign}); err != nil {
		slog.Debug("Failed to send snapshot", "error", err, "campaign_id", campaignID)
		return
	}

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Live feed disconnected", "campaign_id", campaignID)
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(ctx, ws, ev); err != nil {
				slog.Debug("Failed to write live event", "error", err, "campaign_id", campaignID)
				return
			}
		case <-keepalive.C:
			pingCtx, cancelPing := context.WithTimeout(ctx, writeTimeout)
			err := ws.Ping(pingCtx)
			cancelPing()
			if err != nil {
				slog.Debug("Live feed ping failed", "error", err, "campaign_id", campaignID)
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, ws *websocket.Conn, ev Event) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, ws, ev)
}
