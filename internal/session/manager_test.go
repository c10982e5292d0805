package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anvarDev14/davomatoriental/internal/model"
)

type memStore struct {
	records map[string]Record
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]Record)}
}

func (m *memStore) Put(_ context.Context, tokenHash string, rec Record) error {
	m.records[tokenHash] = rec
	return nil
}

func (m *memStore) Get(_ context.Context, tokenHash string) (Record, error) {
	rec, ok := m.records[tokenHash]
	if !ok {
		return Record{}, model.ErrUnauthenticated
	}
	return rec, nil
}

func (m *memStore) Delete(_ context.Context, tokenHash string) error {
	delete(m.records, tokenHash)
	return nil
}

func TestIssueValidateRoundtrip(t *testing.T) {
	mgr := NewManager(newMemStore())
	account := model.Account{ID: 12, TelegramID: 777000}

	token, issued, err := mgr.Issue(context.Background(), account, model.RoleStudent)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.NotEmpty(t, issued.SessionID)

	rec, err := mgr.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, int64(12), rec.AccountID)
	assert.Equal(t, int64(777000), rec.TelegramID)
	assert.Equal(t, model.RoleStudent, rec.Role)
}

func TestValidateUnknownToken(t *testing.T) {
	mgr := NewManager(newMemStore())

	_, err := mgr.Validate(context.Background(), "no-such-token")
	assert.True(t, errors.Is(err, model.ErrUnauthenticated))
}

func TestValidateEmptyToken(t *testing.T) {
	mgr := NewManager(newMemStore())

	_, err := mgr.Validate(context.Background(), "")
	assert.True(t, errors.Is(err, model.ErrUnauthenticated))
}

func TestRevokeStopsToken(t *testing.T) {
	mgr := NewManager(newMemStore())

	token, _, err := mgr.Issue(context.Background(), model.Account{ID: 1, TelegramID: 5}, model.RoleTeacher)
	require.NoError(t, err)

	require.NoError(t, mgr.Revoke(context.Background(), token))

	_, err = mgr.Validate(context.Background(), token)
	assert.True(t, errors.Is(err, model.ErrUnauthenticated))
}

func TestTokensAreUniqueAndOpaque(t *testing.T) {
	store := newMemStore()
	mgr := NewManager(store)

	first, _, err := mgr.Issue(context.Background(), model.Account{ID: 1, TelegramID: 5}, model.RoleStudent)
	require.NoError(t, err)
	second, _, err := mgr.Issue(context.Background(), model.Account{ID: 1, TelegramID: 5}, model.RoleStudent)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	// The raw token must never appear as a storage key.
	_, rawKeyed := store.records[first]
	assert.False(t, rawKeyed)
	_, hashKeyed := store.records[HashToken(first)]
	assert.True(t, hashKeyed)
}
