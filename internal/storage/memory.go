package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dinetab/dinetab-backend/pkg/models"
)

// MemoryStore is an in-memory implementation of the store interfaces with
// the same semantics as the Postgres ones (version guards, paid filtering,
// additive bill postings). It backs the package tests and local development
// without a database.
type MemoryStore struct {
	mu       sync.Mutex
	orders   map[string]*models.Order
	tables   map[string]*models.Table
	products map[string]models.Product
	bills    map[string]*models.Bill
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:   make(map[string]*models.Order),
		tables:   make(map[string]*models.Table),
		products: make(map[string]models.Product),
		bills:    make(map[string]*models.Bill),
	}
}

// Seed helpers, for tests and local fixtures.

func (m *MemoryStore) AddTable(table models.Table) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := table
	t.OrderIDs = append([]string(nil), table.OrderIDs...)
	m.tables[t.ID] = &t
}

func (m *MemoryStore) AddProduct(product models.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[product.ID] = product
}

func (m *MemoryStore) AddBill(bill models.Bill) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := bill
	b.Transactions = append([]models.BillTransaction(nil), bill.Transactions...)
	m.bills[b.TenantID] = &b
}

// OrderStore

func (m *MemoryStore) Create(ctx context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if order.Version == 0 {
		order.Version = 1
	}
	m.orders[order.ID] = cloneOrder(order)
	return nil
}

func (m *MemoryStore) GetByID(ctx context.Context, id string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneOrder(order), nil
}

func (m *MemoryStore) ListByTable(ctx context.Context, tableID string, exclude ...models.OrderStatus) ([]*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Order
	for _, order := range m.orders {
		if order.TableID == tableID && !statusIn(order.Status, exclude) {
			out = append(out, cloneOrder(order))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) ListByTenantFIFO(ctx context.Context, tenantID string, exclude ...models.OrderStatus) ([]*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Order
	for _, order := range m.orders {
		if order.TenantID == tenantID && !statusIn(order.Status, exclude) {
			out = append(out, cloneOrder(order))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) ListByTenantStatus(ctx context.Context, tenantID string, status models.OrderStatus) ([]*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Order
	for _, order := range m.orders {
		if order.TenantID == tenantID && order.Status == status {
			out = append(out, cloneOrder(order))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) Update(ctx context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.orders[order.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != order.Version {
		return ErrVersionConflict
	}
	order.Version++
	m.orders[order.ID] = cloneOrder(order)
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return ErrNotFound
	}
	delete(m.orders, id)
	return nil
}

func (m *MemoryStore) MarkPaid(ctx context.Context, id, actingUserID string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	if order.Payed {
		return nil, ErrAlreadyPaid
	}
	order.Payed = true
	for i := range order.Lines {
		order.Lines[i].PaidQuantity = order.Lines[i].Quantity
	}
	order.ActingUserID = actingUserID
	order.Version++
	return cloneOrder(order), nil
}

func (m *MemoryStore) CountUnpaidByTable(ctx context.Context, tableID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, order := range m.orders {
		if order.TableID == tableID && !order.Payed && order.Status != models.StatusArchived {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) ArchiveTableOrders(ctx context.Context, tableID, actingUserID string, now time.Time) ([]*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var archived []*models.Order
	for _, order := range m.orders {
		if order.TableID != tableID || order.Status == models.StatusArchived {
			continue
		}
		order.Status = models.StatusArchived
		order.StampStatus(models.StatusArchived, now)
		order.ActingUserID = actingUserID
		order.Version++
		archived = append(archived, cloneOrder(order))
	}
	return archived, nil
}

func (m *MemoryStore) ListArchivedOpenByUser(ctx context.Context, userID string) ([]*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Order
	for _, order := range m.orders {
		if order.ActingUserID == userID && order.Status == models.StatusArchived && !order.IsClosed {
			out = append(out, cloneOrder(order))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) CloseOrders(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if order, ok := m.orders[id]; ok {
			order.IsClosed = true
			order.Version++
		}
	}
	return nil
}

// Tables returns the TableStore view. A separate view type keeps the
// table lookup from colliding with the order GetByID method.
func (m *MemoryStore) Tables() TableStore {
	return memoryTables{m}
}

type memoryTables struct {
	m *MemoryStore
}

func (t memoryTables) GetByID(ctx context.Context, id string) (*models.Table, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	table, ok := t.m.tables[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *table
	clone.OrderIDs = append([]string(nil), table.OrderIDs...)
	return &clone, nil
}

func (t memoryTables) AppendOrder(ctx context.Context, tableID, orderID string) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	table, ok := t.m.tables[tableID]
	if !ok {
		return ErrNotFound
	}
	table.OrderIDs = append(table.OrderIDs, orderID)
	return nil
}

func (t memoryTables) RemoveOrder(ctx context.Context, tableID, orderID string) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	table, ok := t.m.tables[tableID]
	if !ok {
		return ErrNotFound
	}
	kept := table.OrderIDs[:0]
	for _, id := range table.OrderIDs {
		if id != orderID {
			kept = append(kept, id)
		}
	}
	table.OrderIDs = kept
	return nil
}

// ProductStore

func (m *MemoryStore) FindByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Product
	seen := make(map[string]bool)
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if p, ok := m.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MemoryStore) UpdateRating(ctx context.Context, productID string, rate float64, raters int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return ErrNotFound
	}
	p.Rate = rate
	p.Raters = raters
	m.products[productID] = p
	return nil
}

// BillStore

func (m *MemoryStore) FindByTenant(ctx context.Context, tenantID string) (*models.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bill, ok := m.bills[tenantID]
	if !ok {
		return nil, ErrNotFound
	}
	b := *bill
	b.Transactions = append([]models.BillTransaction(nil), bill.Transactions...)
	return &b, nil
}

func (m *MemoryStore) AddCommission(ctx context.Context, tenantID string, amount float64, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bill, ok := m.bills[tenantID]
	if !ok {
		return ErrNotFound
	}
	bill.TotalAmount += amount
	bill.Transactions = append(bill.Transactions, models.BillTransaction{
		Date:        time.Now(),
		Amount:      amount,
		Description: description,
	})
	bill.LastUpdated = time.Now()
	return nil
}

func statusIn(status models.OrderStatus, set []models.OrderStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

func cloneOrder(order *models.Order) *models.Order {
	clone := *order
	clone.Lines = append([]models.OrderLine(nil), order.Lines...)
	if order.StatusTimestamps != nil {
		clone.StatusTimestamps = make(map[models.OrderStatus]time.Time, len(order.StatusTimestamps))
		for k, v := range order.StatusTimestamps {
			clone.StatusTimestamps[k] = v
		}
	}
	if order.Tips != nil {
		tips := *order.Tips
		clone.Tips = &tips
	}
	return &clone
}
