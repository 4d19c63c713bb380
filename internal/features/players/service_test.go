package players

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"belenavidad.es/discord-bot/internal/common"
)

type fakePlayerRepo struct {
	players map[string]*Player
}

func newFakePlayerRepo() *fakePlayerRepo {
	return &fakePlayerRepo{players: make(map[string]*Player)}
}

func (f *fakePlayerRepo) Upsert(_ context.Context, id, username string) error {
	if p, ok := f.players[id]; ok {
		p.Username = username
		return nil
	}
	f.players[id] = &Player{ID: id, Username: username}
	return nil
}

func (f *fakePlayerRepo) Get(_ context.Context, id string) (*Player, error) {
	if p, ok := f.players[id]; ok {
		return p, nil
	}
	return nil, common.ErrPlayerNotFound
}

func (f *fakePlayerRepo) Coins(_ context.Context, id string) (int64, error) {
	p, ok := f.players[id]
	if !ok {
		return 0, common.ErrPlayerNotFound
	}
	return p.Coins, nil
}

func (f *fakePlayerRepo) AddCoins(_ context.Context, id string, delta int64) (int64, error) {
	p, ok := f.players[id]
	if !ok {
		return 0, common.ErrPlayerNotFound
	}
	p.Coins += delta
	return p.Coins, nil
}

func TestEnsure_UpdatesUsername(t *testing.T) {
	repo := newFakePlayerRepo()
	svc := NewService(repo)

	require.NoError(t, svc.Ensure(context.Background(), "1", "old"))
	require.NoError(t, svc.Ensure(context.Background(), "1", "new"))

	p, err := svc.Get(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "new", p.Username)
}

func TestGive_PositiveOnly(t *testing.T) {
	repo := newFakePlayerRepo()
	svc := NewService(repo)
	require.NoError(t, svc.Ensure(context.Background(), "1", "ana"))

	_, err := svc.Give(context.Background(), "1", 0)
	assert.ErrorIs(t, err, common.ErrInvalidAmount)

	balance, err := svc.Give(context.Background(), "1", 40)
	require.NoError(t, err)
	assert.Equal(t, int64(40), balance)
}

func TestTake_CanDriveBalanceNegative(t *testing.T) {
	repo := newFakePlayerRepo()
	svc := NewService(repo)
	require.NoError(t, svc.Ensure(context.Background(), "1", "ana"))

	balance, err := svc.Take(context.Background(), "1", 25)
	require.NoError(t, err)
	assert.Equal(t, int64(-25), balance)
}

func TestGive_UnknownPlayer(t *testing.T) {
	repo := newFakePlayerRepo()
	svc := NewService(repo)

	_, err := svc.Give(context.Background(), "ghost", 10)
	assert.ErrorIs(t, err, common.ErrPlayerNotFound)
}

func TestParseUserRef(t *testing.T) {
	assert.Equal(t, "123", ParseUserRef("123"))
	assert.Equal(t, "123", ParseUserRef("<@123>"))
	assert.Equal(t, "123", ParseUserRef("<@!123>"))
	assert.Equal(t, "", ParseUserRef("ana"))
	assert.Equal(t, "", ParseUserRef("<@abc>"))
}
