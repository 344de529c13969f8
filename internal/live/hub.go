// Package live pushes campaign turns to connected clients as they happen.
package live

import (
	"log/slog"
	"sync"

	"github.com/ashureev/taleweaver/internal/domain"
)

// Event types sent over a live feed.
const (
	EventSnapshot = "snapshot"
	EventTurn     = "turn"
)

// Event is one message on a campaign feed.
type Event struct {
	Type       string           `json:"type"`
	CampaignID string           `json:"campaignId"`
	Turn       *domain.Turn     `json:"turn,omitempty"`
	Campaign   *domain.Campaign `json:"campaign,omitempty"`
}

// Hub fans published turns out to the subscribers of each campaign.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[int64]chan Event // campaignID -> subscriberID -> channel
	nextID int64
	buffer int
}

// NewHub creates a hub whose subscribers buffer up to buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		subs:   make(map[string]map[int64]chan Event),
		buffer: buffer,
	}
}

// Subscribe registers interest in a campaign. The returned cancel function
// must be called to release the subscription; it closes the channel.
func (h *Hub) Subscribe(campaignID string) (<-chan Event, func()) {
	ch := make(chan Event, h.buffer)

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if _, ok := h.subs[campaignID]; !ok {
		h.subs[campaignID] = make(map[int64]chan Event)
	}
	h.subs[campaignID][id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if subs, ok := h.subs[campaignID]; ok {
				delete(subs, id)
				if len(subs) == 0 {
					delete(h.subs, campaignID)
				}
			}
			close(ch)
		})
	}
	return ch, cancel
}

// PublishTurn announces a turn appended to a campaign.
func (h *Hub) PublishTurn(campaignID string, turn domain.Turn) {
	h.Publish(Event{Type: EventTurn, CampaignID: campaignID, Turn: &turn})
}

// Publish delivers ev to every subscriber of its campaign without blocking.
// Subscribers whose buffer is full miss the event.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subs[ev.CampaignID] {
		select {
		case ch <- ev:
		default:
			slog.Warn("Live subscriber too slow, dropping event", "campaign_id", ev.CampaignID, "subscriber", id)
		}
	}
}

// Subscribers returns the number of open subscriptions for a campaign.
func (h *Hub) Subscribers(campaignID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[campaignID])
}
