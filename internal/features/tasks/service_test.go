package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"belenavidad.es/discord-bot/internal/common"
)

// fakeTaskRepo keeps tasks, submissions and balances in memory with the
// same transition rules as the SQL implementation.
type fakeTaskRepo struct {
	nextID      int64
	tasks       map[int64]*Task
	submissions map[int64]*SubmissionDetail
	balances    map[string]int64
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{
		tasks:       make(map[int64]*Task),
		submissions: make(map[int64]*SubmissionDetail),
		balances:    make(map[string]int64),
	}
}

func (f *fakeTaskRepo) addTask(name string, reward int64) *Task {
	f.nextID++
	t := &Task{ID: f.nextID, Name: name, Reward: reward}
	f.tasks[t.ID] = t
	return t
}

func (f *fakeTaskRepo) ListAll(_ context.Context) ([]*Task, error) {
	var out []*Task
	for _, t := range f.tasks {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeTaskRepo) Get(_ context.Context, id int64) (*Task, error) {
	if t, ok := f.tasks[id]; ok {
		return t, nil
	}
	return nil, common.ErrTaskNotFound
}

func (f *fakeTaskRepo) Create(_ context.Context, name, description string, reward int64) (int64, error) {
	t := f.addTask(name, reward)
	t.Description = description
	return t.ID, nil
}

func (f *fakeTaskRepo) Update(_ context.Context, id int64, upd TaskUpdate) (bool, error) {
	t, ok := f.tasks[id]
	if !ok {
		return false, nil
	}
	if upd.Reward != nil {
		t.Reward = *upd.Reward
	}
	return true, nil
}

func (f *fakeTaskRepo) Delete(_ context.Context, id int64) (bool, error) {
	if _, ok := f.tasks[id]; !ok {
		return false, nil
	}
	delete(f.tasks, id)
	return true, nil
}

func (f *fakeTaskRepo) Available(_ context.Context, playerID string) ([]*Task, error) {
	var out []*Task
	for _, t := range f.tasks {
		approved := false
		for _, s := range f.submissions {
			if s.TaskID == t.ID && s.PlayerID == playerID && s.State == StateApproved {
				approved = true
			}
		}
		if !approved {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTaskRepo) Submit(_ context.Context, taskID int64, playerID string, note *string) (int64, error) {
	for _, s := range f.submissions {
		if s.TaskID == taskID && s.PlayerID == playerID && s.State == StatePending {
			return 0, common.ErrDuplicatePending
		}
	}
	f.nextID++
	task := f.tasks[taskID]
	f.submissions[f.nextID] = &SubmissionDetail{
		Submission: Submission{ID: f.nextID, TaskID: taskID, PlayerID: playerID, Note: note, State: StatePending, CreatedAt: time.Now()},
		TaskName:   task.Name,
		Reward:     task.Reward,
	}
	return f.nextID, nil
}

func (f *fakeTaskRepo) GetSubmission(_ context.Context, id int64) (*SubmissionDetail, error) {
	if s, ok := f.submissions[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, common.ErrSubmissionNotFound
}

func (f *fakeTaskRepo) PendingSubmissions(_ context.Context) ([]*SubmissionDetail, error) {
	var out []*SubmissionDetail
	for _, s := range f.submissions {
		if s.State == StatePending {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeTaskRepo) Approve(_ context.Context, id int64) (int64, string, bool, error) {
	s, ok := f.submissions[id]
	if !ok || s.State != StatePending {
		return 0, "", false, nil
	}
	s.State = StateApproved
	reward := f.tasks[s.TaskID].Reward
	f.balances[s.PlayerID] += reward
	return reward, s.PlayerID, true, nil
}

func (f *fakeTaskRepo) Reject(_ context.Context, id int64) (bool, error) {
	s, ok := f.submissions[id]
	if !ok || s.State != StatePending {
		return false, nil
	}
	s.State = StateRejected
	return true, nil
}

type fakeChecker struct{ admins map[string]bool }

func (f *fakeChecker) IsAdmin(_ context.Context, id string) (bool, error)   { return f.admins[id], nil }
func (f *fakeChecker) IsBlocked(_ context.Context, id string) (bool, error) { return false, nil }

func newTestTasks(admins ...string) (*Service, *fakeTaskRepo) {
	repo := newFakeTaskRepo()
	set := make(map[string]bool)
	for _, a := range admins {
		set[a] = true
	}
	return NewService(repo, &fakeChecker{admins: set}), repo
}

func TestAvailable_ExcludesApprovedIncludesRejected(t *testing.T) {
	svc, repo := newTestTasks("admin")
	approved := repo.addTask("Villancico", 30)
	rejected := repo.addTask("Foto", 20)

	subA, _, err := svc.Submit(context.Background(), approved.ID, "player", nil)
	require.NoError(t, err)
	subR, _, err := svc.Submit(context.Background(), rejected.ID, "player", nil)
	require.NoError(t, err)

	_, err = svc.Review(context.Background(), subA, "admin", true)
	require.NoError(t, err)
	_, err = svc.Review(context.Background(), subR, "admin", false)
	require.NoError(t, err)

	avail, err := svc.Available(context.Background(), "player")
	require.NoError(t, err)
	require.Len(t, avail, 1)
	assert.Equal(t, rejected.ID, avail[0].ID)
}

func TestListTasks_IncludesTasksHiddenFromPlayers(t *testing.T) {
	svc, repo := newTestTasks("admin")
	done := repo.addTask("Villancico", 30)
	repo.addTask("Foto", 20)

	sub, _, err := svc.Submit(context.Background(), done.ID, "player", nil)
	require.NoError(t, err)
	_, err = svc.Review(context.Background(), sub, "admin", true)
	require.NoError(t, err)

	all, err := svc.ListTasks(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)

	avail, err := svc.Available(context.Background(), "player")
	require.NoError(t, err)
	assert.Len(t, avail, 1)
}

func TestSubmit_UnknownTask(t *testing.T) {
	svc, _ := newTestTasks()

	_, _, err := svc.Submit(context.Background(), 42, "player", nil)
	assert.ErrorIs(t, err, common.ErrTaskNotFound)
}

func TestSubmit_DuplicatePending(t *testing.T) {
	svc, repo := newTestTasks()
	task := repo.addTask("Villancico", 30)

	_, _, err := svc.Submit(context.Background(), task.ID, "player", nil)
	require.NoError(t, err)

	_, _, err = svc.Submit(context.Background(), task.ID, "player", nil)
	assert.ErrorIs(t, err, common.ErrDuplicatePending)
}

func TestReview_ApproveCreditsReward(t *testing.T) {
	svc, repo := newTestTasks("admin")
	task := repo.addTask("Villancico", 30)

	subID, _, err := svc.Submit(context.Background(), task.ID, "player", nil)
	require.NoError(t, err)

	res, err := svc.Review(context.Background(), subID, "admin", true)
	require.NoError(t, err)
	assert.True(t, res.Approved)
	assert.Equal(t, int64(30), res.Reward)
	assert.Equal(t, int64(30), repo.balances["player"])
}

func TestReview_RejectPaysNothing(t *testing.T) {
	svc, repo := newTestTasks("admin")
	task := repo.addTask("Villancico", 30)

	subID, _, err := svc.Submit(context.Background(), task.ID, "player", nil)
	require.NoError(t, err)

	res, err := svc.Review(context.Background(), subID, "admin", false)
	require.NoError(t, err)
	assert.False(t, res.Approved)
	assert.Zero(t, res.Reward)
	assert.Zero(t, repo.balances["player"])
}

func TestReview_SecondReviewFailsAndPaysOnce(t *testing.T) {
	svc, repo := newTestTasks("admin")
	task := repo.addTask("Villancico", 30)

	subID, _, err := svc.Submit(context.Background(), task.ID, "player", nil)
	require.NoError(t, err)

	_, err = svc.Review(context.Background(), subID, "admin", true)
	require.NoError(t, err)

	_, err = svc.Review(context.Background(), subID, "admin", true)
	assert.ErrorIs(t, err, common.ErrAlreadyProcessed)
	assert.Equal(t, int64(30), repo.balances["player"])
}

func TestReview_NonAdminForbidden(t *testing.T) {
	svc, repo := newTestTasks("admin")
	task := repo.addTask("Villancico", 30)

	subID, _, err := svc.Submit(context.Background(), task.ID, "player", nil)
	require.NoError(t, err)

	_, err = svc.Review(context.Background(), subID, "player", true)
	assert.ErrorIs(t, err, common.ErrForbidden)
}

func TestPending_AdminGate(t *testing.T) {
	svc, repo := newTestTasks("admin")
	task := repo.addTask("Villancico", 30)

	_, _, err := svc.Submit(context.Background(), task.ID, "player", nil)
	require.NoError(t, err)

	_, err = svc.Pending(context.Background(), "player")
	assert.ErrorIs(t, err, common.ErrForbidden)

	subs, err := svc.Pending(context.Background(), "admin")
	require.NoError(t, err)
	assert.Len(t, subs, 1)

	count, err := svc.PendingCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCreateTask_Validation(t *testing.T) {
	svc, _ := newTestTasks()

	_, err := svc.CreateTask(context.Background(), "  ", "desc", 10)
	assert.ErrorIs(t, err, common.ErrInvalidName)

	_, err = svc.CreateTask(context.Background(), "Villancico", "desc", 0)
	assert.ErrorIs(t, err, common.ErrInvalidAmount)
}
