// Package players — service.go: registration and the coin ledger.
package players

import (
	"context"

	log "github.com/sirupsen/logrus"

	"belenavidad.es/discord-bot/internal/common"
)

// Service manages player records and balances.
type Service struct {
	repo Repo
}

func NewService(repo Repo) *Service {
	return &Service{repo: repo}
}

// Ensure registers the player on first contact or refreshes the stored
// username. Called on every incoming message.
func (s *Service) Ensure(ctx context.Context, id, username string) error {
	return s.repo.Upsert(ctx, id, username)
}

// Get returns the player record.
func (s *Service) Get(ctx context.Context, id string) (*Player, error) {
	return s.repo.Get(ctx, id)
}

// GetCoins returns the current balance.
func (s *Service) GetCoins(ctx context.Context, id string) (int64, error) {
	return s.repo.Coins(ctx, id)
}

// Give credits coins to a player. Admin-only at the command layer.
func (s *Service) Give(ctx context.Context, id string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, common.ErrInvalidAmount
	}
	coins, err := s.repo.AddCoins(ctx, id, amount)
	if err != nil {
		return 0, err
	}
	log.WithFields(log.Fields{"player": id, "amount": amount}).Info("coins granted")
	return coins, nil
}

// Take debits coins from a player. Admin-only at the command layer.
// An admin may take more than the player holds, driving the balance
// negative; only the requested amount itself must be positive.
func (s *Service) Take(ctx context.Context, id string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, common.ErrInvalidAmount
	}
	coins, err := s.repo.AddCoins(ctx, id, -amount)
	if err != nil {
		return 0, err
	}
	log.WithFields(log.Fields{"player": id, "amount": amount}).Info("coins taken")
	return coins, nil
}
