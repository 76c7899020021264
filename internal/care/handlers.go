package care

import (
	"context"

	"caremesh.org/internal/audit"
	"caremesh.org/internal/event"
)

// Handlers applies identity events to the local shadow store. Every handler
// is idempotent: redelivering an event leaves the store in the same state a
// single delivery produces.
type Handlers struct {
	store ProfileStore
}

func NewHandlers(store ProfileStore) *Handlers {
	return &Handlers{store: store}
}

// Register attaches one handler per identity topic.
func (h *Handlers) Register(c *event.Consumer) {
	c.Handle(event.TopicRegistered, h.OnRegistered)
	c.Handle(event.TopicLoggedIn, h.OnLoggedIn)
	c.Handle(event.TopicLoggedOut, h.OnLoggedOut)
	c.Handle(event.TopicTokenRefreshed, h.OnTokenRefreshed)
}

// OnRegistered mirrors a freshly registered identity.
func (h *Handlers) OnRegistered(ctx context.Context, evt event.Identity) error {
	return h.store.Upsert(ctx, &Profile{
		UserID:   evt.UserID,
		Email:    evt.Email,
		FullName: evt.FullName,
		Role:     evt.Role,
	})
}

// OnLoggedIn records the login timestamp.
func (h *Handlers) OnLoggedIn(ctx context.Context, evt event.Identity) error {
	return h.store.RecordLogin(ctx, evt.UserID, evt.Email, evt.Timestamp)
}

// OnLoggedOut records the logout timestamp.
func (h *Handlers) OnLoggedOut(ctx context.Context, evt event.Identity) error {
	return h.store.RecordLogout(ctx, evt.UserID, evt.Email, evt.Timestamp)
}

// OnTokenRefreshed leaves no store side effect; refreshes are only kept in
// the audit trail.
func (h *Handlers) OnTokenRefreshed(ctx context.Context, evt event.Identity) error {
	return audit.LogEvent(ctx, "care.token.refreshed", map[string]any{
		"user_id": evt.UserID,
		"email":   evt.Email,
	})
}
