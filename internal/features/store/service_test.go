package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"belenavidad.es/discord-bot/internal/common"
	"belenavidad.es/discord-bot/internal/features/belenes"
)

// fakeStoreRepo mirrors the transactional purchase: the debit and the piece
// record both happen, or neither does.
type fakeStoreRepo struct {
	nextID   int64
	items    map[int64]*Item
	balances map[string]int64
	records  []purchaseRecord
}

type purchaseRecord struct {
	buyerID  string
	belenID  int64
	itemID   int64
	quantity int64
}

func newFakeStoreRepo() *fakeStoreRepo {
	return &fakeStoreRepo{
		items:    make(map[int64]*Item),
		balances: make(map[string]int64),
	}
}

func (f *fakeStoreRepo) addItem(name string, price int64) *Item {
	f.nextID++
	it := &Item{ID: f.nextID, Name: name, Price: price, Icon: "🎁"}
	f.items[it.ID] = it
	return it
}

func (f *fakeStoreRepo) ListItems(_ context.Context) ([]*Item, error) {
	var out []*Item
	for _, it := range f.items {
		out = append(out, it)
	}
	return out, nil
}

func (f *fakeStoreRepo) GetItemByID(_ context.Context, id int64) (*Item, error) {
	if it, ok := f.items[id]; ok {
		return it, nil
	}
	return nil, common.ErrItemNotFound
}

func (f *fakeStoreRepo) GetItemByName(_ context.Context, name string) (*Item, error) {
	for _, it := range f.items {
		if it.Name == name {
			return it, nil
		}
	}
	return nil, common.ErrItemNotFound
}

func (f *fakeStoreRepo) CreateItem(_ context.Context, name string, price int64, description *string, icon string) (int64, error) {
	it := f.addItem(name, price)
	it.Description = description
	it.Icon = icon
	return it.ID, nil
}

func (f *fakeStoreRepo) UpdateItem(_ context.Context, id int64, upd ItemUpdate) (bool, error) {
	it, ok := f.items[id]
	if !ok {
		return false, nil
	}
	if upd.Price != nil {
		it.Price = *upd.Price
	}
	if upd.Name != nil {
		it.Name = *upd.Name
	}
	return true, nil
}

func (f *fakeStoreRepo) DeleteItem(_ context.Context, id int64) (bool, error) {
	if _, ok := f.items[id]; !ok {
		return false, nil
	}
	delete(f.items, id)
	return true, nil
}

func (f *fakeStoreRepo) Purchase(_ context.Context, buyerID string, belenID, itemID, quantity, unitPrice int64) (int64, int64, error) {
	total := unitPrice * quantity
	balance := f.balances[buyerID]
	if balance < total {
		return 0, 0, fmt.Errorf("%w: required %d, available %d", common.ErrInsufficientCoins, total, balance)
	}
	f.balances[buyerID] = balance - total
	f.records = append(f.records, purchaseRecord{buyerID, belenID, itemID, quantity})
	f.nextID++
	return f.nextID, f.balances[buyerID], nil
}

// fakeMembers maps players to their belén.
type fakeMembers struct{ byPlayer map[string]*belenes.Belen }

func (f *fakeMembers) BelenForPlayer(_ context.Context, playerID string) (*belenes.Belen, error) {
	if b, ok := f.byPlayer[playerID]; ok {
		return b, nil
	}
	return nil, common.ErrNotMember
}

func newTestStore() (*Service, *fakeStoreRepo, *fakeMembers) {
	repo := newFakeStoreRepo()
	members := &fakeMembers{byPlayer: make(map[string]*belenes.Belen)}
	return NewService(repo, members), repo, members
}

func TestPurchase_Success(t *testing.T) {
	svc, repo, members := newTestStore()
	item := repo.addItem("Estrella", 50)
	members.byPlayer["buyer"] = &belenes.Belen{ID: 1}
	repo.balances["buyer"] = 200

	res, err := svc.Purchase(context.Background(), "buyer", 1, item.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(150), res.TotalCost)
	assert.Equal(t, int64(50), res.NewBalance)
	assert.Equal(t, int64(50), repo.balances["buyer"])
	require.Len(t, repo.records, 1)
	assert.Equal(t, int64(3), repo.records[0].quantity)
}

func TestPurchase_QuantityMustBePositive(t *testing.T) {
	svc, repo, members := newTestStore()
	item := repo.addItem("Estrella", 50)
	members.byPlayer["buyer"] = &belenes.Belen{ID: 1}

	_, err := svc.Purchase(context.Background(), "buyer", 1, item.ID, 0)
	assert.ErrorIs(t, err, common.ErrInvalidAmount)
}

func TestPurchase_NonMemberForbidden(t *testing.T) {
	svc, repo, _ := newTestStore()
	item := repo.addItem("Estrella", 50)

	_, err := svc.Purchase(context.Background(), "loner", 1, item.ID, 1)
	assert.ErrorIs(t, err, common.ErrForbidden)
}

func TestPurchase_WrongBelenForbidden(t *testing.T) {
	svc, repo, members := newTestStore()
	item := repo.addItem("Estrella", 50)
	members.byPlayer["buyer"] = &belenes.Belen{ID: 2}

	_, err := svc.Purchase(context.Background(), "buyer", 1, item.ID, 1)
	assert.ErrorIs(t, err, common.ErrForbidden)
}

func TestPurchase_UnknownItem(t *testing.T) {
	svc, _, members := newTestStore()
	members.byPlayer["buyer"] = &belenes.Belen{ID: 1}

	_, err := svc.Purchase(context.Background(), "buyer", 1, 99, 1)
	assert.ErrorIs(t, err, common.ErrItemNotFound)
}

func TestPurchase_InsufficientCoinsLeavesStateUntouched(t *testing.T) {
	svc, repo, members := newTestStore()
	item := repo.addItem("Estrella", 100)
	members.byPlayer["buyer"] = &belenes.Belen{ID: 1}
	repo.balances["buyer"] = 99

	_, err := svc.Purchase(context.Background(), "buyer", 1, item.ID, 1)
	assert.ErrorIs(t, err, common.ErrInsufficientCoins)
	assert.Equal(t, int64(99), repo.balances["buyer"])
	assert.Empty(t, repo.records)
}

func TestFindItem_NumericIsAlwaysID(t *testing.T) {
	svc, repo, _ := newTestStore()
	repo.addItem("7", 10) // gets ID 1

	_, err := svc.FindItem(context.Background(), "7")
	assert.ErrorIs(t, err, common.ErrItemNotFound)

	got, err := svc.FindItem(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "7", got.Name)
}

func TestCreateItem_Validation(t *testing.T) {
	svc, _, _ := newTestStore()

	_, err := svc.CreateItem(context.Background(), " ", 10, nil, "")
	assert.ErrorIs(t, err, common.ErrInvalidName)

	_, err = svc.CreateItem(context.Background(), "Estrella", 0, nil, "")
	assert.ErrorIs(t, err, common.ErrInvalidAmount)
}

func TestUpdateItem_PriceMustBePositive(t *testing.T) {
	svc, repo, _ := newTestStore()
	item := repo.addItem("Estrella", 50)

	bad := int64(-5)
	err := svc.UpdateItem(context.Background(), item.ID, ItemUpdate{Price: &bad})
	assert.ErrorIs(t, err, common.ErrInvalidAmount)

	good := int64(75)
	require.NoError(t, svc.UpdateItem(context.Background(), item.ID, ItemUpdate{Price: &good}))
	assert.Equal(t, int64(75), item.Price)
}

func TestDeleteItem_NotFound(t *testing.T) {
	svc, _, _ := newTestStore()

	err := svc.DeleteItem(context.Background(), 42)
	assert.ErrorIs(t, err, common.ErrItemNotFound)
}
