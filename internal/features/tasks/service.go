// Package tasks — service.go: the review engine. Submissions move
// pendiente → aprobada/rechazada exactly once; approval pays the reward in
// the same transaction as the state flip.
package tasks

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"belenavidad.es/discord-bot/internal/common"
	"belenavidad.es/discord-bot/internal/features/access"
)

// Service runs task submission and admin review.
type Service struct {
	repo   Repo
	access access.Checker
}

func NewService(repo Repo, checker access.Checker) *Service {
	return &Service{repo: repo, access: checker}
}

// ListTasks returns the whole catalog regardless of who completed what.
// Backs the admin listing.
func (s *Service) ListTasks(ctx context.Context) ([]*Task, error) {
	return s.repo.ListAll(ctx)
}

// Available lists the tasks the player can still earn, best paid first.
// Tasks with an approved submission by this player are excluded; rejected
// submissions do not block resubmission.
func (s *Service) Available(ctx context.Context, playerID string) ([]*Task, error) {
	return s.repo.Available(ctx, playerID)
}

// Submit files a pending submission for review. A player may have at most
// one pending submission per task.
func (s *Service) Submit(ctx context.Context, taskID int64, playerID string, note *string) (int64, *Task, error) {
	task, err := s.repo.Get(ctx, taskID)
	if err != nil {
		return 0, nil, err
	}

	id, err := s.repo.Submit(ctx, taskID, playerID, note)
	if err != nil {
		return 0, nil, err
	}

	log.WithFields(log.Fields{
		"submission_id": id,
		"task_id":       taskID,
		"player":        playerID,
	}).Info("task submitted for review")

	return id, task, nil
}

// Review decides a pending submission. Admin-only. Approve credits the
// reward atomically with the state flip; reject only stamps the review
// time. Both outcomes are terminal: reviewing again fails with
// ErrAlreadyProcessed and changes nothing.
func (s *Service) Review(ctx context.Context, submissionID int64, reviewerID string, approve bool) (*ReviewResult, error) {
	isAdmin, err := s.access.IsAdmin(ctx, reviewerID)
	if err != nil {
		return nil, err
	}
	if !isAdmin {
		return nil, common.ErrForbidden
	}

	sub, err := s.repo.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.State != StatePending {
		return nil, common.ErrAlreadyProcessed
	}

	if approve {
		reward, playerID, ok, err := s.repo.Approve(ctx, submissionID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, common.ErrAlreadyProcessed
		}
		sub.State = StateApproved
		sub.PlayerID = playerID

		log.WithFields(log.Fields{
			"submission_id": submissionID,
			"player":        playerID,
			"reward":        reward,
			"reviewer":      reviewerID,
		}).Info("submission approved")

		return &ReviewResult{Submission: sub, Approved: true, Reward: reward}, nil
	}

	ok, err := s.repo.Reject(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.ErrAlreadyProcessed
	}
	sub.State = StateRejected

	log.WithFields(log.Fields{
		"submission_id": submissionID,
		"reviewer":      reviewerID,
	}).Info("submission rejected")

	return &ReviewResult{Submission: sub, Approved: false}, nil
}

// Pending lists every submission awaiting review. Admin-only.
func (s *Service) Pending(ctx context.Context, reviewerID string) ([]*SubmissionDetail, error) {
	isAdmin, err := s.access.IsAdmin(ctx, reviewerID)
	if err != nil {
		return nil, err
	}
	if !isAdmin {
		return nil, common.ErrForbidden
	}
	return s.repo.PendingSubmissions(ctx)
}

// PendingCount is the digest variant used by the scheduler; it bypasses
// the reviewer gate because the scheduler only messages admins.
func (s *Service) PendingCount(ctx context.Context) (int, error) {
	subs, err := s.repo.PendingSubmissions(ctx)
	if err != nil {
		return 0, err
	}
	return len(subs), nil
}

// CreateTask adds a task to the catalog. Admin-only at the command layer.
func (s *Service) CreateTask(ctx context.Context, name, description string, reward int64) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, common.ErrInvalidName
	}
	if reward <= 0 {
		return 0, common.ErrInvalidAmount
	}
	return s.repo.Create(ctx, name, description, reward)
}

// UpdateTask applies a partial update. Admin-only at the command layer.
func (s *Service) UpdateTask(ctx context.Context, id int64, upd TaskUpdate) error {
	if upd.Reward != nil && *upd.Reward <= 0 {
		return common.ErrInvalidAmount
	}
	ok, err := s.repo.Update(ctx, id, upd)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrTaskNotFound
	}
	return nil
}

// DeleteTask removes a task. Admin-only at the command layer.
func (s *Service) DeleteTask(ctx context.Context, id int64) error {
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrTaskNotFound
	}
	return nil
}
