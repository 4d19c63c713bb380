package access

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/argon2"

	"belenavidad.es/discord-bot/internal/common"
)

type fakeAccessRepo struct {
	admins  map[string]bool
	blocked map[string]*BlockedUser
}

func newFakeAccessRepo() *fakeAccessRepo {
	return &fakeAccessRepo{admins: make(map[string]bool), blocked: make(map[string]*BlockedUser)}
}

func (f *fakeAccessRepo) IsAdmin(_ context.Context, id string) (bool, error) {
	return f.admins[id], nil
}

func (f *fakeAccessRepo) IsBlocked(_ context.Context, id string) (bool, error) {
	_, ok := f.blocked[id]
	return ok, nil
}

func (f *fakeAccessRepo) AddAdmin(_ context.Context, id string) (bool, error) {
	if f.admins[id] {
		return false, nil
	}
	f.admins[id] = true
	return true, nil
}

func (f *fakeAccessRepo) RemoveAdmin(_ context.Context, id string) (bool, error) {
	if !f.admins[id] {
		return false, nil
	}
	delete(f.admins, id)
	return true, nil
}

func (f *fakeAccessRepo) Block(_ context.Context, id string, reason *string) (bool, error) {
	if _, ok := f.blocked[id]; ok {
		return false, nil
	}
	f.blocked[id] = &BlockedUser{ID: id, Reason: reason, CreatedAt: time.Now()}
	return true, nil
}

func (f *fakeAccessRepo) Unblock(_ context.Context, id string) (bool, error) {
	if _, ok := f.blocked[id]; !ok {
		return false, nil
	}
	delete(f.blocked, id)
	return true, nil
}

func (f *fakeAccessRepo) ListAdmins(_ context.Context) ([]string, error) {
	var out []string
	for id := range f.admins {
		out = append(out, id)
	}
	return out, nil
}

func (f *fakeAccessRepo) ListBlocked(_ context.Context) ([]*BlockedUser, error) {
	var out []*BlockedUser
	for _, u := range f.blocked {
		out = append(out, u)
	}
	return out, nil
}

// encodeHash produces the same format scripts/generate_hash.go emits, with
// cheap parameters to keep the test fast.
func encodeHash(password string) string {
	salt := []byte("0123456789abcdef")
	var (
		memory      uint32 = 1024
		iterations  uint32 = 1
		parallelism uint8  = 1
	)
	hash := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, 32)
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		memory, iterations, parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash))
}

func TestElevate_CorrectPassword(t *testing.T) {
	repo := newFakeAccessRepo()
	svc := NewService(repo, encodeHash("navidad2024"))

	require.NoError(t, svc.Elevate(context.Background(), "user", "navidad2024"))

	isAdmin, err := svc.IsAdmin(context.Background(), "user")
	require.NoError(t, err)
	assert.True(t, isAdmin)
}

func TestElevate_WrongPassword(t *testing.T) {
	repo := newFakeAccessRepo()
	svc := NewService(repo, encodeHash("navidad2024"))

	err := svc.Elevate(context.Background(), "user", "wrong")
	assert.ErrorIs(t, err, common.ErrWrongPassword)

	isAdmin, err := svc.IsAdmin(context.Background(), "user")
	require.NoError(t, err)
	assert.False(t, isAdmin)
}

func TestElevate_ThrottledAfterThreeFailures(t *testing.T) {
	repo := newFakeAccessRepo()
	svc := NewService(repo, encodeHash("navidad2024"))

	for i := 0; i < 3; i++ {
		err := svc.Elevate(context.Background(), "user", "wrong")
		assert.ErrorIs(t, err, common.ErrWrongPassword)
	}

	// even the right password is refused while throttled
	err := svc.Elevate(context.Background(), "user", "navidad2024")
	assert.ErrorIs(t, err, common.ErrTooManyAttempts)

	// another user is unaffected
	require.NoError(t, svc.Elevate(context.Background(), "other", "navidad2024"))
}

func TestElevate_UnsupportedHashVersionRejected(t *testing.T) {
	repo := newFakeAccessRepo()
	// same digest, wrong format version
	stale := strings.Replace(encodeHash("navidad2024"), "$v=19$", "$v=18$", 1)
	svc := NewService(repo, stale)

	err := svc.Elevate(context.Background(), "user", "navidad2024")
	assert.ErrorIs(t, err, common.ErrWrongPassword)
}

func TestElevate_MalformedHashNeverMatches(t *testing.T) {
	repo := newFakeAccessRepo()
	svc := NewService(repo, "not-a-hash")

	err := svc.Elevate(context.Background(), "user", "anything")
	assert.ErrorIs(t, err, common.ErrWrongPassword)
}

func TestSeedAdmins_Idempotent(t *testing.T) {
	repo := newFakeAccessRepo()
	svc := NewService(repo, encodeHash("x"))

	require.NoError(t, svc.SeedAdmins(context.Background(), []string{"a", "b"}))
	require.NoError(t, svc.SeedAdmins(context.Background(), []string{"a", "b"}))

	admins, err := svc.ListAdmins(context.Background())
	require.NoError(t, err)
	assert.Len(t, admins, 2)
}

func TestBlockUnblock(t *testing.T) {
	repo := newFakeAccessRepo()
	svc := NewService(repo, encodeHash("x"))

	added, err := svc.Block(context.Background(), "user", nil)
	require.NoError(t, err)
	assert.True(t, added)

	again, err := svc.Block(context.Background(), "user", nil)
	require.NoError(t, err)
	assert.False(t, again)

	blocked, err := svc.IsBlocked(context.Background(), "user")
	require.NoError(t, err)
	assert.True(t, blocked)

	removed, err := svc.Unblock(context.Background(), "user")
	require.NoError(t, err)
	assert.True(t, removed)
}

func TestListBlocked_KeepsReason(t *testing.T) {
	repo := newFakeAccessRepo()
	svc := NewService(repo, encodeHash("x"))

	reason := "spam en el canal"
	_, err := svc.Block(context.Background(), "user", &reason)
	require.NoError(t, err)
	_, err = svc.Block(context.Background(), "other", nil)
	require.NoError(t, err)

	blocked, err := svc.ListBlocked(context.Background())
	require.NoError(t, err)
	require.Len(t, blocked, 2)

	byID := make(map[string]*BlockedUser)
	for _, u := range blocked {
		byID[u.ID] = u
	}
	require.NotNil(t, byID["user"].Reason)
	assert.Equal(t, "spam en el canal", *byID["user"].Reason)
	assert.Nil(t, byID["other"].Reason)
}
