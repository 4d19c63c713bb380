// Package access — service.go: the authorization capability consulted by
// every engine, plus password-based admin elevation.
package access

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"

	"belenavidad.es/discord-bot/internal/common"
)

// Checker is the capability the engines receive instead of reaching for a
// global admin/block set. Tests substitute a fake.
type Checker interface {
	IsAdmin(ctx context.Context, id string) (bool, error)
	IsBlocked(ctx context.Context, id string) (bool, error)
}

// Service implements Checker on top of the database sets and handles the
// !admin elevation flow.
//
// Policy: the block list gates player-level commands only. Admin commands
// check IsAdmin alone, so a blocked admin keeps admin privileges.
type Service struct {
	repo         Repo
	passwordHash string

	// failed elevation attempts, in memory: 3 per hour per user
	attemptsMu sync.Mutex
	attempts   map[string][]time.Time
}

const (
	maxElevationAttempts = 3
	elevationWindow      = 1 * time.Hour
)

func NewService(repo Repo, passwordHash string) *Service {
	return &Service{
		repo:         repo,
		passwordHash: passwordHash,
		attempts:     make(map[string][]time.Time),
	}
}

func (s *Service) IsAdmin(ctx context.Context, id string) (bool, error) {
	return s.repo.IsAdmin(ctx, id)
}

func (s *Service) IsBlocked(ctx context.Context, id string) (bool, error) {
	return s.repo.IsBlocked(ctx, id)
}

// SeedAdmins inserts the configured bootstrap admin IDs. Called once on boot.
func (s *Service) SeedAdmins(ctx context.Context, ids []string) error {
	for _, id := range ids {
		added, err := s.repo.AddAdmin(ctx, id)
		if err != nil {
			return fmt.Errorf("seed admin %s: %w", id, err)
		}
		if added {
			log.WithField("user_id", id).Info("seed admin registered")
		}
	}
	return nil
}

// AddAdmin puts a user in the admin set. Returns false if already an admin.
func (s *Service) AddAdmin(ctx context.Context, id string) (bool, error) {
	return s.repo.AddAdmin(ctx, id)
}

// RemoveAdmin drops a user from the admin set.
func (s *Service) RemoveAdmin(ctx context.Context, id string) (bool, error) {
	return s.repo.RemoveAdmin(ctx, id)
}

// Block adds a user to the block list with an optional reason.
func (s *Service) Block(ctx context.Context, id string, reason *string) (bool, error) {
	return s.repo.Block(ctx, id, reason)
}

// Unblock removes a user from the block list.
func (s *Service) Unblock(ctx context.Context, id string) (bool, error) {
	return s.repo.Unblock(ctx, id)
}

// ListAdmins returns every admin user id.
func (s *Service) ListAdmins(ctx context.Context) ([]string, error) {
	return s.repo.ListAdmins(ctx)
}

func (s *Service) ListBlocked(ctx context.Context) ([]*BlockedUser, error) {
	return s.repo.ListBlocked(ctx)
}

// Elevate verifies the admin password and, on success, adds the caller to
// the admin set. 3 failed attempts lock the user out for one hour.
func (s *Service) Elevate(ctx context.Context, userID, password string) error {
	if !s.allowAttempt(userID) {
		return common.ErrTooManyAttempts
	}

	if !verifyArgon2id(password, s.passwordHash) {
		s.recordFailure(userID)
		log.WithField("user_id", userID).Warn("failed admin elevation")
		return common.ErrWrongPassword
	}

	if _, err := s.repo.AddAdmin(ctx, userID); err != nil {
		return err
	}
	log.WithField("user_id", userID).Info("admin elevated by password")
	return nil
}

func (s *Service) allowAttempt(userID string) bool {
	s.attemptsMu.Lock()
	defer s.attemptsMu.Unlock()

	cutoff := time.Now().Add(-elevationWindow)
	var recent []time.Time
	for _, t := range s.attempts[userID] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	s.attempts[userID] = recent
	return len(recent) < maxElevationAttempts
}

func (s *Service) recordFailure(userID string) {
	s.attemptsMu.Lock()
	defer s.attemptsMu.Unlock()
	s.attempts[userID] = append(s.attempts[userID], time.Now())
}

// verifyArgon2id checks a password against an encoded hash of the form
// $argon2id$v=19$m=65536,t=3,p=2$<salt>$<hash>.
func verifyArgon2id(password, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}

	var memory uint32
	var iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expected)))
	return subtle.ConstantTimeCompare(computed, expected) == 1
}
