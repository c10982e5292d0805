package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/anvarDev14/davomatoriental/internal/model"
)

// Manager issues and validates opaque bearer tokens backed by a Store.
type Manager struct {
	store Store
	now   func() time.Time
}

func NewManager(store Store) *Manager {
	return &Manager{store: store, now: time.Now}
}

// Issue mints a token for the account and persists its record. The raw
// token is returned exactly once.
func (m *Manager) Issue(ctx context.Context, account model.Account, role model.Role) (string, Record, error) {
	token, err := NewToken()
	if err != nil {
		return "", Record{}, err
	}
	rec := Record{
		SessionID:  uuid.NewString(),
		AccountID:  account.ID,
		TelegramID: account.TelegramID,
		Role:       role,
		IssuedAt:   m.now().UTC(),
	}
	if err := m.store.Put(ctx, HashToken(token), rec); err != nil {
		return "", Record{}, err
	}
	return token, rec, nil
}

// Validate resolves a presented token to its record. An unknown or
// revoked token yields model.ErrUnauthenticated.
func (m *Manager) Validate(ctx context.Context, token string) (Record, error) {
	if token == "" {
		return Record{}, model.ErrUnauthenticated
	}
	return m.store.Get(ctx, HashToken(token))
}

// Revoke drops the session; the token stops working immediately.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	return m.store.Delete(ctx, HashToken(token))
}
