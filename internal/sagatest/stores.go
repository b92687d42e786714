package sagatest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ordersaga/internal/catalog"
	"ordersaga/internal/events"
	"ordersaga/internal/order"
	"ordersaga/internal/outbox"
	"ordersaga/internal/projection"
	"ordersaga/internal/user"
)

// OrderStore is an in-memory order.Repository whose outbox the relay can
// drain through outbox.Store.
type OrderStore struct {
	mu      sync.Mutex
	orders  map[string]order.Order
	records []outbox.Record
	sent    map[int64]bool
}

func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders: make(map[string]order.Order),
		sent:   make(map[int64]bool),
	}
}

func (s *OrderStore) Create(ctx context.Context, o *order.Order, out ...events.Event) error {
	records, err := outbox.NewRecords(ctx, out)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return order.ErrOrderExists
	}
	s.orders[o.ID] = clone(o)
	s.appendRecords(records)
	return nil
}

func (s *OrderStore) Update(ctx context.Context, o *order.Order, from events.OrderStatus, out ...events.Event) error {
	records, err := outbox.NewRecords(ctx, out)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.orders[o.ID]
	if !ok || current.Status != from {
		return fmt.Errorf("%w: %s is no longer %s", order.ErrInvalidTransition, o.ID, from)
	}
	s.orders[o.ID] = clone(o)
	s.appendRecords(records)
	return nil
}

func (s *OrderStore) Get(_ context.Context, orderID string) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	c := clone(&o)
	return &c, nil
}

// Count returns how many orders exist.
func (s *OrderStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *OrderStore) FetchPending(_ context.Context, limit int) ([]outbox.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []outbox.Record
	for _, rec := range s.records {
		if len(out) == limit {
			break
		}
		if !s.sent[rec.ID] {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *OrderStore) MarkSent(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent[id] = true
	return nil
}

func (s *OrderStore) appendRecords(records []outbox.Record) {
	for _, rec := range records {
		rec.ID = int64(len(s.records) + 1)
		s.records = append(s.records, rec)
	}
}

func clone(o *order.Order) order.Order {
	c := *o
	c.Items = append([]events.OrderItem(nil), o.Items...)
	return c
}

// ViewStore is an in-memory projection.Store.
type ViewStore struct {
	mu       sync.Mutex
	products map[string]projection.ProductView
	orders   map[string]projection.OrderView
	users    map[string]projection.UserView
}

func NewViewStore() *ViewStore {
	return &ViewStore{
		products: make(map[string]projection.ProductView),
		orders:   make(map[string]projection.OrderView),
		users:    make(map[string]projection.UserView),
	}
}

func (s *ViewStore) UpsertProduct(_ context.Context, v projection.ProductView) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[v.ID] = v
	return nil
}

func (s *ViewStore) UpsertUser(_ context.Context, v projection.UserView) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[v.ID] = v
	return nil
}

func (s *ViewStore) InsertOrderStub(_ context.Context, v projection.OrderView) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[v.ID]; ok {
		return false, nil
	}
	s.orders[v.ID] = v
	return true, nil
}

func (s *ViewStore) SaveOrder(_ context.Context, v projection.OrderView) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.orders[v.ID]; ok {
		v.Status, v.Reason, v.UpdatedAt = existing.Status, existing.Reason, existing.UpdatedAt
	}
	s.orders[v.ID] = v
	return nil
}

func (s *ViewStore) SetOrderStatus(_ context.Context, orderID string, from, to events.OrderStatus, reason string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.orders[orderID]
	if !ok || v.Status != from {
		return false, nil
	}
	v.Status, v.Reason, v.UpdatedAt = to, reason, at
	s.orders[orderID] = v
	return true, nil
}

func (s *ViewStore) GetOrder(_ context.Context, orderID string) (*projection.OrderView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.orders[orderID]
	if !ok {
		return nil, projection.ErrViewNotFound
	}
	return &v, nil
}

func (s *ViewStore) OrdersByUser(_ context.Context, userID string) ([]projection.OrderView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	views := []projection.OrderView{}
	for _, v := range s.orders {
		if v.UserID == userID {
			views = append(views, v)
		}
	}
	sort.Slice(views, func(i, j int) bool { return views[i].UpdatedAt.After(views[j].UpdatedAt) })
	return views, nil
}

func (s *ViewStore) GetProduct(_ context.Context, productID string) (*projection.ProductView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.products[productID]
	if !ok {
		return nil, projection.ErrViewNotFound
	}
	return &v, nil
}

func (s *ViewStore) GetUser(_ context.Context, userID string) (*projection.UserView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.users[userID]
	if !ok {
		return nil, projection.ErrViewNotFound
	}
	return &v, nil
}

// CatalogStore is an in-memory catalog.Repository.
type CatalogStore struct {
	mu       sync.Mutex
	products map[string]catalog.Product
}

func NewCatalogStore() *CatalogStore {
	return &CatalogStore{products: make(map[string]catalog.Product)}
}

func (s *CatalogStore) Upsert(_ context.Context, p *catalog.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = *p
	return nil
}

func (s *CatalogStore) Get(_ context.Context, productID string) (*catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	return &p, nil
}

// UserStore is an in-memory user.Repository.
type UserStore struct {
	mu    sync.Mutex
	users map[string]user.User
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]user.User)}
}

func (s *UserStore) Upsert(_ context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = *u
	return nil
}

func (s *UserStore) Get(_ context.Context, userID string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	return &u, nil
}
