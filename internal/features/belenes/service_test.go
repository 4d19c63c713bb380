package belenes

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"belenavidad.es/discord-bot/internal/common"
)

// fakeRepo is an in-memory Repo with the same transition semantics as the
// SQL implementation: accept/reject only flip pending requests.
type fakeRepo struct {
	nextID     int64
	belenes    map[int64]*Belen
	membership map[string]int64 // playerID -> belenID
	requests   map[int64]*JoinRequestDetail
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		belenes:    make(map[int64]*Belen),
		membership: make(map[string]int64),
		requests:   make(map[int64]*JoinRequestDetail),
	}
}

func (f *fakeRepo) Create(_ context.Context, name, creatorID string, description *string) (int64, error) {
	for _, b := range f.belenes {
		if b.Name == name {
			return 0, common.ErrDuplicateName
		}
	}
	if _, ok := f.membership[creatorID]; ok {
		return 0, common.ErrAlreadyMember
	}
	f.nextID++
	f.belenes[f.nextID] = &Belen{ID: f.nextID, Name: name, CreatorID: creatorID, Description: description}
	f.membership[creatorID] = f.nextID
	return f.nextID, nil
}

func (f *fakeRepo) GetByID(_ context.Context, id int64) (*Belen, error) {
	if b, ok := f.belenes[id]; ok {
		return b, nil
	}
	return nil, common.ErrBelenNotFound
}

func (f *fakeRepo) GetByName(_ context.Context, name string) (*Belen, error) {
	for _, b := range f.belenes {
		if b.Name == name {
			return b, nil
		}
	}
	return nil, common.ErrBelenNotFound
}

func (f *fakeRepo) BelenForPlayer(_ context.Context, playerID string) (*Belen, error) {
	if id, ok := f.membership[playerID]; ok {
		return f.belenes[id], nil
	}
	return nil, common.ErrNotMember
}

func (f *fakeRepo) Delete(_ context.Context, id int64) (bool, error) {
	if _, ok := f.belenes[id]; !ok {
		return false, nil
	}
	delete(f.belenes, id)
	for p, bid := range f.membership {
		if bid == id {
			delete(f.membership, p)
		}
	}
	return true, nil
}

func (f *fakeRepo) Leave(_ context.Context, playerID string) (*LeaveResult, error) {
	id, ok := f.membership[playerID]
	if !ok {
		return nil, common.ErrNotMember
	}
	b := f.belenes[id]
	delete(f.membership, playerID)
	if b.CreatorID == playerID {
		delete(f.belenes, id)
		for p, bid := range f.membership {
			if bid == id {
				delete(f.membership, p)
			}
		}
		return &LeaveResult{Belen: b, Deleted: true}, nil
	}
	return &LeaveResult{Belen: b, Deleted: false}, nil
}

func (f *fakeRepo) Members(_ context.Context, belenID int64) ([]*Member, error) {
	var out []*Member
	for p, bid := range f.membership {
		if bid == belenID {
			out = append(out, &Member{PlayerID: p})
		}
	}
	return out, nil
}

func (f *fakeRepo) Pieces(_ context.Context, _ int64) ([]*Piece, error) { return nil, nil }

func (f *fakeRepo) UpsertJoinRequest(_ context.Context, belenID int64, playerID string) (int64, error) {
	for _, r := range f.requests {
		if r.BelenID == belenID && r.PlayerID == playerID {
			r.State = StatePending
			r.CreatedAt = time.Now()
			return r.ID, nil
		}
	}
	f.nextID++
	b := f.belenes[belenID]
	f.requests[f.nextID] = &JoinRequestDetail{
		JoinRequest: JoinRequest{ID: f.nextID, BelenID: belenID, PlayerID: playerID, State: StatePending, CreatedAt: time.Now()},
		BelenName:   b.Name,
		CreatorID:   b.CreatorID,
	}
	return f.nextID, nil
}

func (f *fakeRepo) GetJoinRequest(_ context.Context, id int64) (*JoinRequestDetail, error) {
	if r, ok := f.requests[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, common.ErrRequestNotFound
}

func (f *fakeRepo) PendingRequests(_ context.Context, belenID int64) ([]*JoinRequestDetail, error) {
	var out []*JoinRequestDetail
	for _, r := range f.requests {
		if r.BelenID == belenID && r.State == StatePending {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRepo) AcceptJoinRequest(_ context.Context, id int64) (bool, error) {
	r, ok := f.requests[id]
	if !ok || r.State != StatePending {
		return false, nil
	}
	r.State = StateAccepted
	if _, taken := f.membership[r.PlayerID]; !taken {
		f.membership[r.PlayerID] = r.BelenID
	}
	return true, nil
}

func (f *fakeRepo) RejectJoinRequest(_ context.Context, id int64) (bool, error) {
	r, ok := f.requests[id]
	if !ok || r.State != StatePending {
		return false, nil
	}
	r.State = StateRejected
	return true, nil
}

func (f *fakeRepo) PurgeResolvedRequests(_ context.Context, olderThan time.Time) (int64, error) {
	var n int64
	for id, r := range f.requests {
		if r.State != StatePending && r.CreatedAt.Before(olderThan) {
			delete(f.requests, id)
			n++
		}
	}
	return n, nil
}

// fakeChecker marks a fixed set of user IDs as admins.
type fakeChecker struct{ admins map[string]bool }

func (f *fakeChecker) IsAdmin(_ context.Context, id string) (bool, error)   { return f.admins[id], nil }
func (f *fakeChecker) IsBlocked(_ context.Context, id string) (bool, error) { return false, nil }

func newTestService(admins ...string) (*Service, *fakeRepo) {
	repo := newFakeRepo()
	set := make(map[string]bool)
	for _, a := range admins {
		set[a] = true
	}
	return NewService(repo, &fakeChecker{admins: set}), repo
}

func TestCreate_Success(t *testing.T) {
	svc, repo := newTestService()

	b, err := svc.Create(context.Background(), "Portal de Belén", "creator", nil)
	require.NoError(t, err)
	assert.Equal(t, "Portal de Belén", b.Name)
	assert.Equal(t, "creator", b.CreatorID)

	got, err := repo.BelenForPlayer(context.Background(), "creator")
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
}

func TestCreate_EmptyName(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Create(context.Background(), "   ", "creator", nil)
	assert.ErrorIs(t, err, common.ErrInvalidName)
}

func TestCreate_DuplicateName(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Create(context.Background(), "Nazaret", "a", nil)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), "Nazaret", "b", nil)
	assert.ErrorIs(t, err, common.ErrDuplicateName)
}

func TestCreate_AlreadyMember(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Create(context.Background(), "Uno", "creator", nil)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), "Dos", "creator", nil)
	assert.ErrorIs(t, err, common.ErrAlreadyMember)
}

func TestFind_NumericIdentifierNeverMatchesName(t *testing.T) {
	svc, _ := newTestService()

	b, err := svc.Create(context.Background(), "123", "creator", nil)
	require.NoError(t, err)
	require.NotEqual(t, int64(123), b.ID)

	// "123" is treated as an id lookup, so the belén literally named "123"
	// is unreachable through its name.
	_, err = svc.Find(context.Background(), "123")
	assert.ErrorIs(t, err, common.ErrBelenNotFound)

	got, err := svc.Find(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
}

func TestRequestJoin_AlreadyMember(t *testing.T) {
	svc, _ := newTestService()

	b, err := svc.Create(context.Background(), "Casa", "creator", nil)
	require.NoError(t, err)

	_, _, err = svc.RequestJoin(context.Background(), b.ID, "creator")
	assert.ErrorIs(t, err, common.ErrAlreadyMember)
}

func TestResolve_AcceptAddsMember(t *testing.T) {
	svc, repo := newTestService()

	b, err := svc.Create(context.Background(), "Casa", "creator", nil)
	require.NoError(t, err)

	reqID, _, err := svc.RequestJoin(context.Background(), b.ID, "joiner")
	require.NoError(t, err)

	detail, err := svc.Resolve(context.Background(), reqID, "creator", DecisionAccept)
	require.NoError(t, err)
	assert.Equal(t, StateAccepted, detail.State)

	got, err := repo.BelenForPlayer(context.Background(), "joiner")
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
}

func TestResolve_RejectDoesNotAddMember(t *testing.T) {
	svc, repo := newTestService()

	b, err := svc.Create(context.Background(), "Casa", "creator", nil)
	require.NoError(t, err)

	reqID, _, err := svc.RequestJoin(context.Background(), b.ID, "joiner")
	require.NoError(t, err)

	detail, err := svc.Resolve(context.Background(), reqID, "creator", DecisionReject)
	require.NoError(t, err)
	assert.Equal(t, StateRejected, detail.State)

	_, err = repo.BelenForPlayer(context.Background(), "joiner")
	assert.ErrorIs(t, err, common.ErrNotMember)
}

func TestResolve_SecondResolutionFails(t *testing.T) {
	svc, _ := newTestService()

	b, err := svc.Create(context.Background(), "Casa", "creator", nil)
	require.NoError(t, err)

	reqID, _, err := svc.RequestJoin(context.Background(), b.ID, "joiner")
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), reqID, "creator", DecisionAccept)
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), reqID, "creator", DecisionReject)
	assert.ErrorIs(t, err, common.ErrAlreadyProcessed)
}

func TestResolve_UnknownDecisionLeavesRequestPending(t *testing.T) {
	svc, _ := newTestService()

	b, err := svc.Create(context.Background(), "Casa", "creator", nil)
	require.NoError(t, err)

	reqID, _, err := svc.RequestJoin(context.Background(), b.ID, "joiner")
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), reqID, "creator", Decision("quizas"))
	assert.ErrorIs(t, err, common.ErrInvalidDecision)

	// the request is still decidable
	_, err = svc.Resolve(context.Background(), reqID, "creator", DecisionAccept)
	assert.NoError(t, err)
}

func TestResolve_StrangerForbidden(t *testing.T) {
	svc, _ := newTestService()

	b, err := svc.Create(context.Background(), "Casa", "creator", nil)
	require.NoError(t, err)

	reqID, _, err := svc.RequestJoin(context.Background(), b.ID, "joiner")
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), reqID, "stranger", DecisionAccept)
	assert.ErrorIs(t, err, common.ErrForbidden)
}

func TestResolve_AdminMayDecide(t *testing.T) {
	svc, _ := newTestService("admin")

	b, err := svc.Create(context.Background(), "Casa", "creator", nil)
	require.NoError(t, err)

	reqID, _, err := svc.RequestJoin(context.Background(), b.ID, "joiner")
	require.NoError(t, err)

	detail, err := svc.Resolve(context.Background(), reqID, "admin", DecisionAccept)
	require.NoError(t, err)
	assert.Equal(t, StateAccepted, detail.State)
}

func TestRequestJoin_RefreshedAfterReject(t *testing.T) {
	svc, _ := newTestService()

	b, err := svc.Create(context.Background(), "Casa", "creator", nil)
	require.NoError(t, err)

	reqID, _, err := svc.RequestJoin(context.Background(), b.ID, "joiner")
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), reqID, "creator", DecisionReject)
	require.NoError(t, err)

	// Re-asking reuses the same row, back in pending state.
	againID, _, err := svc.RequestJoin(context.Background(), b.ID, "joiner")
	require.NoError(t, err)
	assert.Equal(t, reqID, againID)

	detail, err := svc.Resolve(context.Background(), againID, "creator", DecisionAccept)
	require.NoError(t, err)
	assert.Equal(t, StateAccepted, detail.State)
}

func TestLeave_CreatorDeletesBelen(t *testing.T) {
	svc, repo := newTestService()

	b, err := svc.Create(context.Background(), "Casa", "creator", nil)
	require.NoError(t, err)

	res, err := svc.Leave(context.Background(), "creator")
	require.NoError(t, err)
	assert.True(t, res.Deleted)

	_, err = repo.GetByID(context.Background(), b.ID)
	assert.ErrorIs(t, err, common.ErrBelenNotFound)
}

func TestDelete_RequiresAdmin(t *testing.T) {
	svc, _ := newTestService("admin")

	b, err := svc.Create(context.Background(), "Casa", "creator", nil)
	require.NoError(t, err)

	_, err = svc.Delete(context.Background(), b.ID, "creator")
	assert.ErrorIs(t, err, common.ErrForbidden)

	deleted, err := svc.Delete(context.Background(), b.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, b.ID, deleted.ID)
}
