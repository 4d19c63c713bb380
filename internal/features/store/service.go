// Package store — service.go: purchase validation and catalog management.
package store

import (
	"context"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"

	"belenavidad.es/discord-bot/internal/common"
	"belenavidad.es/discord-bot/internal/features/belenes"
)

// MembershipSource answers which belén a player belongs to. Implemented by
// the belenes service; tests use a fake.
type MembershipSource interface {
	BelenForPlayer(ctx context.Context, playerID string) (*belenes.Belen, error)
}

// Service validates and executes purchases, and manages the catalog.
type Service struct {
	repo    Repo
	members MembershipSource
}

func NewService(repo Repo, members MembershipSource) *Service {
	return &Service{repo: repo, members: members}
}

// Purchase buys quantity units of an item for a belén. The buyer must be a
// member of exactly that belén and hold at least price×quantity coins.
// Debit and piece record land in one transaction; on any failure neither
// changes.
func (s *Service) Purchase(ctx context.Context, buyerID string, belenID, itemID, quantity int64) (*PurchaseResult, error) {
	if quantity < 1 {
		return nil, common.ErrInvalidAmount
	}

	belen, err := s.members.BelenForPlayer(ctx, buyerID)
	if err != nil {
		if errors.Is(err, common.ErrNotMember) {
			return nil, common.ErrForbidden
		}
		return nil, err
	}
	if belen.ID != belenID {
		return nil, common.ErrForbidden
	}

	item, err := s.repo.GetItemByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	recordID, newBalance, err := s.repo.Purchase(ctx, buyerID, belenID, itemID, quantity, item.Price)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"buyer":    buyerID,
		"belen_id": belenID,
		"item":     item.Name,
		"quantity": quantity,
		"cost":     item.Price * quantity,
	}).Info("purchase completed")

	return &PurchaseResult{
		RecordID:   recordID,
		Item:       item,
		Quantity:   quantity,
		TotalCost:  item.Price * quantity,
		NewBalance: newBalance,
	}, nil
}

// BelenFor returns the belén the player belongs to, or ErrNotMember.
func (s *Service) BelenFor(ctx context.Context, playerID string) (*belenes.Belen, error) {
	return s.members.BelenForPlayer(ctx, playerID)
}

// FindItem resolves an identifier to a catalog item. Numeric identifiers
// are always tried as ids, never as names.
func (s *Service) FindItem(ctx context.Context, identifier string) (*Item, error) {
	identifier = strings.TrimSpace(identifier)
	if common.IsNumeric(identifier) {
		id, err := common.ParseID(identifier)
		if err != nil {
			return nil, common.ErrItemNotFound
		}
		return s.repo.GetItemByID(ctx, id)
	}
	return s.repo.GetItemByName(ctx, identifier)
}

// ListItems returns the catalog ordered by price.
func (s *Service) ListItems(ctx context.Context) ([]*Item, error) {
	return s.repo.ListItems(ctx)
}

// CreateItem adds a catalog entry. Admin-only at the command layer.
func (s *Service) CreateItem(ctx context.Context, name string, price int64, description *string, icon string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, common.ErrInvalidName
	}
	if price <= 0 {
		return 0, common.ErrInvalidAmount
	}
	if icon == "" {
		icon = "🎁"
	}
	return s.repo.CreateItem(ctx, name, price, description, icon)
}

// UpdateItem applies a partial update. Admin-only at the command layer.
func (s *Service) UpdateItem(ctx context.Context, id int64, upd ItemUpdate) error {
	if upd.Price != nil && *upd.Price <= 0 {
		return common.ErrInvalidAmount
	}
	ok, err := s.repo.UpdateItem(ctx, id, upd)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrItemNotFound
	}
	return nil
}

// DeleteItem removes a catalog entry. Admin-only at the command layer.
func (s *Service) DeleteItem(ctx context.Context, id int64) error {
	ok, err := s.repo.DeleteItem(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrItemNotFound
	}
	return nil
}
