package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/comanda-app/backend-comanda/internal/db"
)

type fakeStore struct {
	carts      map[uuid.UUID]db.Cart
	bySession  map[string]uuid.UUID
	items      map[uuid.UUID][]db.CartItem
	products   map[uuid.UUID]db.Product
	variations map[uuid.UUID]db.Variation
	addons     map[uuid.UUID][]db.AddonOption
	created    int
	touched    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		carts:      map[uuid.UUID]db.Cart{},
		bySession:  map[string]uuid.UUID{},
		items:      map[uuid.UUID][]db.CartItem{},
		products:   map[uuid.UUID]db.Product{},
		variations: map[uuid.UUID]db.Variation{},
		addons:     map[uuid.UUID][]db.AddonOption{},
	}
}

func (f *fakeStore) CreateCart(ctx context.Context, establishmentID uuid.UUID, sessionID string, expiresAt time.Time) (db.Cart, error) {
	f.created++
	cart := db.Cart{ID: uuid.New(), EstablishmentID: establishmentID, SessionID: sessionID, ExpiresAt: expiresAt}
	f.carts[cart.ID] = cart
	f.bySession[sessionID] = cart.ID
	return cart, nil
}

func (f *fakeStore) GetCartBySession(ctx context.Context, establishmentID uuid.UUID, sessionID string) (db.Cart, error) {
	id, ok := f.bySession[sessionID]
	if !ok {
		return db.Cart{}, pgx.ErrNoRows
	}
	return f.carts[id], nil
}

func (f *fakeStore) GetCart(ctx context.Context, establishmentID, id uuid.UUID) (db.Cart, error) {
	cart, ok := f.carts[id]
	if !ok || cart.EstablishmentID != establishmentID {
		return db.Cart{}, pgx.ErrNoRows
	}
	return cart, nil
}

func (f *fakeStore) TouchCart(ctx context.Context, cartID uuid.UUID, expiresAt time.Time) error {
	f.touched++
	return nil
}

func (f *fakeStore) SetCartCoupon(ctx context.Context, cartID uuid.UUID, code *string) error {
	cart := f.carts[cartID]
	cart.CouponCode = code
	f.carts[cartID] = cart
	return nil
}

func (f *fakeStore) AddCartItem(ctx context.Context, arg db.AddCartItemParams) (db.CartItem, error) {
	price, err := decimal.NewFromString(arg.UnitPrice)
	if err != nil {
		return db.CartItem{}, err
	}
	item := db.CartItem{
		ID:          uuid.New(),
		CartID:      arg.CartID,
		ProductID:   arg.ProductID,
		VariationID: arg.VariationID,
		Name:        arg.Name,
		UnitPrice:   price,
		Qty:         arg.Qty,
		Addons:      arg.Addons,
		Note:        arg.Note,
	}
	f.items[arg.CartID] = append(f.items[arg.CartID], item)
	return item, nil
}

func (f *fakeStore) UpdateCartItemQty(ctx context.Context, cartID, itemID uuid.UUID, qty int32) (db.CartItem, error) {
	for i, it := range f.items[cartID] {
		if it.ID == itemID {
			f.items[cartID][i].Qty = qty
			return f.items[cartID][i], nil
		}
	}
	return db.CartItem{}, pgx.ErrNoRows
}

func (f *fakeStore) RemoveCartItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	items := f.items[cartID]
	for i, it := range items {
		if it.ID == itemID {
			f.items[cartID] = append(items[:i], items[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeStore) ListCartItems(ctx context.Context, cartID uuid.UUID) ([]db.CartItem, error) {
	return f.items[cartID], nil
}

func (f *fakeStore) ClearCartItems(ctx context.Context, cartID uuid.UUID) error {
	f.items[cartID] = nil
	return nil
}

func (f *fakeStore) GetProductByID(ctx context.Context, establishmentID, id uuid.UUID) (db.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return db.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

func (f *fakeStore) GetVariation(ctx context.Context, id uuid.UUID) (db.Variation, error) {
	v, ok := f.variations[id]
	if !ok {
		return db.Variation{}, pgx.ErrNoRows
	}
	return v, nil
}

func (f *fakeStore) ListAddonOptions(ctx context.Context, productID uuid.UUID) ([]db.AddonOption, error) {
	return f.addons[productID], nil
}

func seed(store *fakeStore) (db.Establishment, db.Product, db.Variation, db.AddonOption) {
	establishment := db.Establishment{ID: uuid.New(), Slug: "cantina", DeliveryFee: decimal.NewFromInt(8)}
	product := db.Product{
		ID:              uuid.New(),
		EstablishmentID: establishment.ID,
		Name:            "Pizza Margherita",
		Slug:            "pizza-margherita",
		BasePrice:       decimal.NewFromInt(40),
		Available:       true,
	}
	variation := db.Variation{ID: uuid.New(), ProductID: product.ID, Name: "Grande", Price: decimal.NewFromInt(55)}
	addon := db.AddonOption{ID: uuid.New(), ProductID: product.ID, Name: "Borda recheada", Price: decimal.NewFromInt(6)}
	store.products[product.ID] = product
	store.variations[variation.ID] = variation
	store.addons[product.ID] = []db.AddonOption{addon}
	return establishment, product, variation, addon
}

func TestEnsureCartCreatesThenReuses(t *testing.T) {
	store := newFakeStore()
	establishment, _, _, _ := seed(store)
	svc := &Service{Q: store}

	first, err := svc.EnsureCart(context.Background(), establishment.ID, "sess-1")
	require.NoError(t, err)
	second, err := svc.EnsureCart(context.Background(), establishment.ID, "sess-1")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 1, store.created)
	require.Equal(t, 1, store.touched)
}

func TestAddItemSnapshotsVariationAndAddons(t *testing.T) {
	store := newFakeStore()
	establishment, product, variation, addon := seed(store)
	svc := &Service{Q: store}
	cart, err := svc.EnsureCart(context.Background(), establishment.ID, "sess-1")
	require.NoError(t, err)

	item, err := svc.AddItem(context.Background(), establishment.ID, cart.ID, AddItemInput{
		ProductID:   product.ID,
		VariationID: &variation.ID,
		AddonIDs:    []uuid.UUID{addon.ID},
		Qty:         2,
	})
	require.NoError(t, err)
	require.Equal(t, "Pizza Margherita Grande", item.Name)
	require.True(t, item.UnitPrice.Equal(decimal.NewFromInt(55)))
	require.Len(t, item.Addons, 1)
	require.True(t, item.Addons[0].UnitPrice.Equal(decimal.NewFromInt(6)))
}

func TestAddItemRejectsForeignAddon(t *testing.T) {
	store := newFakeStore()
	establishment, product, _, _ := seed(store)
	svc := &Service{Q: store}
	cart, err := svc.EnsureCart(context.Background(), establishment.ID, "sess-1")
	require.NoError(t, err)

	_, err = svc.AddItem(context.Background(), establishment.ID, cart.ID, AddItemInput{
		ProductID: product.ID,
		AddonIDs:  []uuid.UUID{uuid.New()},
		Qty:       1,
	})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestAddItemRejectsZeroQty(t *testing.T) {
	store := newFakeStore()
	establishment, product, _, _ := seed(store)
	svc := &Service{Q: store}
	cart, err := svc.EnsureCart(context.Background(), establishment.ID, "sess-1")
	require.NoError(t, err)

	_, err = svc.AddItem(context.Background(), establishment.ID, cart.ID, AddItemInput{
		ProductID: product.ID,
		Qty:       0,
	})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestAddItemRejectsUnavailableProduct(t *testing.T) {
	store := newFakeStore()
	establishment, product, _, _ := seed(store)
	product.Available = false
	store.products[product.ID] = product
	svc := &Service{Q: store}
	cart, err := svc.EnsureCart(context.Background(), establishment.ID, "sess-1")
	require.NoError(t, err)

	_, err = svc.AddItem(context.Background(), establishment.ID, cart.ID, AddItemInput{
		ProductID: product.ID,
		Qty:       1,
	})
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestPriceComputesTotals(t *testing.T) {
	store := newFakeStore()
	establishment, product, variation, addon := seed(store)
	svc := &Service{Q: store}
	cart, err := svc.EnsureCart(context.Background(), establishment.ID, "sess-1")
	require.NoError(t, err)

	_, err = svc.AddItem(context.Background(), establishment.ID, cart.ID, AddItemInput{
		ProductID:   product.ID,
		VariationID: &variation.ID,
		AddonIDs:    []uuid.UUID{addon.ID},
		Qty:         2,
	})
	require.NoError(t, err)

	view, err := svc.Price(context.Background(), establishment, cart)
	require.NoError(t, err)
	// (55 + 6) * 2 = 122 subtotal, +8 delivery fee preview
	require.True(t, view.Totals.Subtotal.Equal(decimal.NewFromInt(122)))
	require.True(t, view.Totals.Total.Equal(decimal.NewFromInt(130)))
	require.Len(t, view.Items, 1)
	require.Equal(t, "61.00", view.Items[0].LineUnit)
	require.Equal(t, "122.00", view.Items[0].LineTotal)
}
