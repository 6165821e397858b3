package storage

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return New(nil, "", t.TempDir(), []byte("test-salt"), slog.New(slog.DiscardHandler))
}

func TestCreateAndFind(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, "reader@example.com", 1234))

	sub, err := s.FindByEmail(ctx, "reader@example.com")
	require.NoError(t, err)
	assert.Equal(t, "reader@example.com", sub.EmailAddress)
	assert.Equal(t, int64(1234), sub.SubscribedAt)
	assert.Zero(t, sub.LastNotifiedAt)
}

func TestCreateDuplicate(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, "reader@example.com", 1234))

	err := s.Create(ctx, "reader@example.com", 5678)
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestEmailNormalization(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, "Reader@Example.com", 1234))

	sub, err := s.FindByEmail(ctx, "  reader@example.com ")
	require.NoError(t, err)
	assert.Equal(t, "reader@example.com", sub.EmailAddress)

	err = s.Create(ctx, "READER@EXAMPLE.COM", 5678)
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestFindMissing(t *testing.T) {
	s := testStore(t)

	_, err := s.FindByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, IsNotFound(err))
}

func TestSetLastNotified(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, "reader@example.com", 1234))
	require.NoError(t, s.SetLastNotified(ctx, "reader@example.com", 9999))

	sub, err := s.FindByEmail(ctx, "reader@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(9999), sub.LastNotifiedAt)
	assert.Equal(t, int64(1234), sub.SubscribedAt, "subscription time survives updates")
}

func TestSetLastNotifiedMissing(t *testing.T) {
	s := testStore(t)

	err := s.SetLastNotified(context.Background(), "nobody@example.com", 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, "reader@example.com", 1234))
	require.NoError(t, s.Delete(ctx, "reader@example.com"))

	_, err := s.FindByEmail(ctx, "reader@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteMissing(t *testing.T) {
	s := testStore(t)

	err := s.Delete(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, "a@example.com", 1))
	require.NoError(t, s.Create(ctx, "b@example.com", 2))
	require.NoError(t, s.Create(ctx, "c@example.com", 3))

	subs, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 3)

	emails := map[string]bool{}
	for _, sub := range subs {
		emails[sub.EmailAddress] = true
	}
	assert.True(t, emails["a@example.com"])
	assert.True(t, emails["b@example.com"])
	assert.True(t, emails["c@example.com"])
}

func TestListEmpty(t *testing.T) {
	s := testStore(t)

	subs, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestKeyIsStableAndSaltDependent(t *testing.T) {
	a := New(nil, "", t.TempDir(), []byte("salt-one"), slog.New(slog.DiscardHandler))
	b := New(nil, "", t.TempDir(), []byte("salt-two"), slog.New(slog.DiscardHandler))

	assert.Equal(t, a.key("reader@example.com"), a.key("Reader@Example.com "))
	assert.NotEqual(t, a.key("reader@example.com"), b.key("reader@example.com"))
}
