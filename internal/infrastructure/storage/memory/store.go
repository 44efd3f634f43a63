// Package memory is an in-process store for the whole domain. It backs the
// memory database driver and the domain tests.
//
// A transaction holds the store lock from begin to end, so concurrent sales
// are fully serialized. Rollback restores a snapshot taken at begin.
package memory

import (
	"context"
	"sync"
	"time"

	"tillpoint/internal/core/id"
	"tillpoint/internal/core/tenant"
	"tillpoint/internal/domain/catalog"
	"tillpoint/internal/domain/lot"
	"tillpoint/internal/domain/sale"
)

// Event is a recorded outbox message.
type Event struct {
	ID          id.ID
	TenantID    string
	EventType   string
	AggregateID id.ID
	Payload     []byte
	CreatedAt   time.Time
}

type envelope struct {
	requestHash string
	status      string
	response    *sale.SyncResponse
	expiresAt   time.Time
}

type state struct {
	tenants    map[string]tenant.Tenant
	products   map[id.ID]catalog.Product
	locations  map[id.ID]catalog.Location
	lots       map[id.ID]lot.Lot
	invoices   map[id.ID]sale.Invoice
	invoiceNos map[string]id.ID
	lines      map[id.ID][]sale.LineItem
	history    []sale.HistoryEntry
	events     []Event
	envelopes  map[string]envelope
}

func newState() *state {
	return &state{
		tenants:    make(map[string]tenant.Tenant),
		products:   make(map[id.ID]catalog.Product),
		locations:  make(map[id.ID]catalog.Location),
		lots:       make(map[id.ID]lot.Lot),
		invoices:   make(map[id.ID]sale.Invoice),
		invoiceNos: make(map[string]id.ID),
		lines:      make(map[id.ID][]sale.LineItem),
		envelopes:  make(map[string]envelope),
	}
}

// clone copies everything a rollback must restore. Stored values are never
// mutated in place, so copying the containers is enough.
func (s *state) clone() *state {
	c := &state{
		tenants:    make(map[string]tenant.Tenant, len(s.tenants)),
		products:   make(map[id.ID]catalog.Product, len(s.products)),
		locations:  make(map[id.ID]catalog.Location, len(s.locations)),
		lots:       make(map[id.ID]lot.Lot, len(s.lots)),
		invoices:   make(map[id.ID]sale.Invoice, len(s.invoices)),
		invoiceNos: make(map[string]id.ID, len(s.invoiceNos)),
		lines:      make(map[id.ID][]sale.LineItem, len(s.lines)),
		history:    append([]sale.HistoryEntry(nil), s.history...),
		events:     append([]Event(nil), s.events...),
		envelopes:  make(map[string]envelope, len(s.envelopes)),
	}
	for k, v := range s.tenants {
		c.tenants[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.locations {
		c.locations[k] = v
	}
	for k, v := range s.lots {
		c.lots[k] = v
	}
	for k, v := range s.invoices {
		c.invoices[k] = v
	}
	for k, v := range s.invoiceNos {
		c.invoiceNos[k] = v
	}
	for k, v := range s.lines {
		c.lines[k] = append([]sale.LineItem(nil), v...)
	}
	for k, v := range s.envelopes {
		c.envelopes[k] = v
	}
	return c
}

// Store implements every repository of the domain in memory.
type Store struct {
	mu   sync.Mutex
	data *state
	now  func() time.Time
}

func New() *Store {
	return &Store{data: newState(), now: time.Now}
}

type txKey struct{}

func (s *Store) inTx(ctx context.Context) bool {
	owner, ok := ctx.Value(txKey{}).(*Store)
	return ok && owner == s
}

// view runs fn under the store lock unless ctx already holds it.
func (s *Store) view(ctx context.Context, fn func(d *state) error) error {
	if s.inTx(ctx) {
		return fn(s.data)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

// RunInTransaction implements tx.Manager.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	defer func() {
		if p := recover(); p != nil {
			s.data = snapshot
			panic(p)
		}
	}()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// ReadOnly implements tx.ReadOnlyManager.
func (s *Store) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.RunInTransaction(ctx, fn)
}

// Events returns the recorded outbox messages, oldest first.
func (s *Store) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.data.events...)
}

// Ping implements the readiness check.
func (s *Store) Ping(context.Context) error {
	return nil
}

func scopedKey(tenantID, key string) string {
	return tenantID + "/" + key
}
