// Package belenes — service.go: the membership engine. Validation happens
// before any mutation; the repository runs each multi-step change in a
// single database transaction.
package belenes

import (
	"context"
	"errors"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"belenavidad.es/discord-bot/internal/common"
	"belenavidad.es/discord-bot/internal/features/access"
)

// Service runs belén lifecycle and join-request arbitration.
type Service struct {
	repo   Repo
	access access.Checker
}

func NewService(repo Repo, checker access.Checker) *Service {
	return &Service{repo: repo, access: checker}
}

// Create makes a new belén with the caller as creator and sole member.
// Fails with ErrAlreadyMember when the creator already has a belén and
// ErrDuplicateName when the name is taken (case-insensitive).
func (s *Service) Create(ctx context.Context, name, creatorID string, description *string) (*Belen, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, common.ErrInvalidName
	}

	if _, err := s.repo.BelenForPlayer(ctx, creatorID); err == nil {
		return nil, common.ErrAlreadyMember
	} else if !errors.Is(err, common.ErrNotMember) {
		return nil, err
	}

	// Pre-check for a friendlier error; the unique index on LOWER(nombre)
	// is the real guard against a concurrent create.
	if _, err := s.repo.GetByName(ctx, name); err == nil {
		return nil, common.ErrDuplicateName
	} else if !errors.Is(err, common.ErrBelenNotFound) {
		return nil, err
	}

	id, err := s.repo.Create(ctx, name, creatorID, description)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"belen_id": id,
		"name":     name,
		"creator":  creatorID,
	}).Info("belen created")

	return &Belen{ID: id, Name: name, CreatorID: creatorID, Description: description}, nil
}

// Find resolves an identifier to a belén. An all-digits identifier is
// always looked up as an id, never as a name, even if a belén is literally
// named with digits.
func (s *Service) Find(ctx context.Context, identifier string) (*Belen, error) {
	identifier = strings.TrimSpace(identifier)
	if common.IsNumeric(identifier) {
		id, err := common.ParseID(identifier)
		if err != nil {
			return nil, common.ErrBelenNotFound
		}
		return s.repo.GetByID(ctx, id)
	}
	return s.repo.GetByName(ctx, identifier)
}

// BelenForPlayer returns the caller's belén, or ErrNotMember.
func (s *Service) BelenForPlayer(ctx context.Context, playerID string) (*Belen, error) {
	return s.repo.BelenForPlayer(ctx, playerID)
}

// RequestJoin files (or refreshes) a pending join request. The creator is
// notified by the caller after this returns; notification failure never
// affects the stored request.
func (s *Service) RequestJoin(ctx context.Context, belenID int64, playerID string) (int64, *Belen, error) {
	if _, err := s.repo.BelenForPlayer(ctx, playerID); err == nil {
		return 0, nil, common.ErrAlreadyMember
	} else if !errors.Is(err, common.ErrNotMember) {
		return 0, nil, err
	}

	belen, err := s.repo.GetByID(ctx, belenID)
	if err != nil {
		return 0, nil, err
	}

	requestID, err := s.repo.UpsertJoinRequest(ctx, belenID, playerID)
	if err != nil {
		return 0, nil, err
	}

	log.WithFields(log.Fields{
		"request_id": requestID,
		"belen_id":   belenID,
		"player":     playerID,
	}).Info("join request filed")

	return requestID, belen, nil
}

// Resolve arbitrates a pending request. Only the belén's creator or an
// admin may decide. Both outcomes are terminal: a second resolution of the
// same request fails with ErrAlreadyProcessed and changes nothing.
func (s *Service) Resolve(ctx context.Context, requestID int64, actorID string, decision Decision) (*JoinRequestDetail, error) {
	req, err := s.repo.GetJoinRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.State != StatePending {
		return nil, common.ErrAlreadyProcessed
	}

	if actorID != req.CreatorID {
		isAdmin, err := s.access.IsAdmin(ctx, actorID)
		if err != nil {
			return nil, err
		}
		if !isAdmin {
			return nil, common.ErrForbidden
		}
	}

	var ok bool
	switch decision {
	case DecisionAccept:
		ok, err = s.repo.AcceptJoinRequest(ctx, requestID)
		req.State = StateAccepted
	case DecisionReject:
		ok, err = s.repo.RejectJoinRequest(ctx, requestID)
		req.State = StateRejected
	default:
		return nil, common.ErrInvalidDecision
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		// lost the race to another resolver
		return nil, common.ErrAlreadyProcessed
	}

	log.WithFields(log.Fields{
		"request_id": requestID,
		"actor":      actorID,
		"decision":   decision,
	}).Info("join request resolved")

	return req, nil
}

// Leave removes the caller from their belén. A creator leaving deletes the
// belén entirely (cascade) and the result reports Deleted=true.
func (s *Service) Leave(ctx context.Context, playerID string) (*LeaveResult, error) {
	res, err := s.repo.Leave(ctx, playerID)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"player":   playerID,
		"belen_id": res.Belen.ID,
		"deleted":  res.Deleted,
	}).Info("player left belen")

	return res, nil
}

// Delete removes a belén unconditionally. Admin-only.
func (s *Service) Delete(ctx context.Context, belenID int64, actorID string) (*Belen, error) {
	isAdmin, err := s.access.IsAdmin(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !isAdmin {
		return nil, common.ErrForbidden
	}

	belen, err := s.repo.GetByID(ctx, belenID)
	if err != nil {
		return nil, err
	}

	ok, err := s.repo.Delete(ctx, belenID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.ErrBelenNotFound
	}

	log.WithFields(log.Fields{"belen_id": belenID, "actor": actorID}).Info("belen deleted by admin")
	return belen, nil
}

// Members returns the roster with contribution totals.
func (s *Service) Members(ctx context.Context, belenID int64) ([]*Member, error) {
	return s.repo.Members(ctx, belenID)
}

// Pieces returns the purchased pieces, newest first.
func (s *Service) Pieces(ctx context.Context, belenID int64) ([]*Piece, error) {
	return s.repo.Pieces(ctx, belenID)
}

// Pending lists a belén's pending join requests. Restricted to the belén's
// creator or an admin.
func (s *Service) Pending(ctx context.Context, belenID int64, actorID string) ([]*JoinRequestDetail, error) {
	belen, err := s.repo.GetByID(ctx, belenID)
	if err != nil {
		return nil, err
	}
	if actorID != belen.CreatorID {
		isAdmin, err := s.access.IsAdmin(ctx, actorID)
		if err != nil {
			return nil, err
		}
		if !isAdmin {
			return nil, common.ErrForbidden
		}
	}
	return s.repo.PendingRequests(ctx, belenID)
}

// PurgeResolved deletes terminal join requests older than age. Run by the
// weekly maintenance job.
func (s *Service) PurgeResolved(ctx context.Context, age time.Duration) (int64, error) {
	n, err := s.repo.PurgeResolvedRequests(ctx, time.Now().Add(-age))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.WithField("purged", n).Info("old join requests purged")
	}
	return n, nil
}
