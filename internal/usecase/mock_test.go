//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"numera-billing-sync/internal/domain"
	"numera-billing-sync/internal/domain/model"
	"numera-billing-sync/internal/domain/ports/adapter"
	"numera-billing-sync/internal/domain/ports/repository"
)

// ---- Mock EventRepository ----

type MockEventRepo struct {
	mu   sync.Mutex
	data map[string]*model.InboundEvent // by gateway event id

	AdmitFunc         func(ctx context.Context, tx repository.Tx, gatewayEventID, eventType string, rawPayload []byte) (*repository.AdmitResult, error)
	MarkProcessedFunc func(ctx context.Context, tx repository.Tx, id string, at time.Time) error
	RecordErrorFunc   func(ctx context.Context, tx repository.Tx, id string, procErr string) error
}

var _ repository.EventRepository = (*MockEventRepo)(nil)

func NewMockEventRepo() *MockEventRepo {
	return &MockEventRepo{data: map[string]*model.InboundEvent{}}
}

func (r *MockEventRepo) Admit(ctx context.Context, tx repository.Tx, gatewayEventID, eventType string, rawPayload []byte) (*repository.AdmitResult, error) {
	if r.AdmitFunc != nil {
		return r.AdmitFunc(ctx, tx, gatewayEventID, eventType, rawPayload)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if ev, ok := r.data[gatewayEventID]; ok {
		if ev.Processed {
			cp := *ev
			return &repository.AdmitResult{Event: &cp, AlreadyProcessed: true}, nil
		}
		ev.EventType = eventType
		ev.RawPayload = rawPayload
		cp := *ev
		return &repository.AdmitResult{Event: &cp}, nil
	}
	ev := &model.InboundEvent{
		ID:             uuid.NewString(),
		GatewayEventID: gatewayEventID,
		EventType:      eventType,
		RawPayload:     rawPayload,
		ReceivedAt:     time.Now(),
	}
	r.data[gatewayEventID] = ev
	cp := *ev
	return &repository.AdmitResult{Event: &cp}, nil
}

func (r *MockEventRepo) MarkProcessed(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	if r.MarkProcessedFunc != nil {
		return r.MarkProcessedFunc(ctx, tx, id, at)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.data {
		if ev.ID == id {
			if ev.Processed {
				return domain.ErrEventAlreadyProcessed
			}
			ev.Processed = true
			ev.ProcessingError = nil
			ev.ProcessedAt = &at
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r *MockEventRepo) RecordError(ctx context.Context, tx repository.Tx, id string, procErr string) error {
	if r.RecordErrorFunc != nil {
		return r.RecordErrorFunc(ctx, tx, id, procErr)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.data {
		if ev.ID == id && !ev.Processed {
			msg := procErr
			ev.ProcessingError = &msg
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r *MockEventRepo) FindByGatewayEventID(ctx context.Context, tx repository.Tx, gatewayEventID string) (*model.InboundEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ev, ok := r.data[gatewayEventID]; ok {
		cp := *ev
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockEventRepo) ListUnprocessedOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.InboundEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.InboundEvent
	for _, ev := range r.data {
		if !ev.Processed && ev.ReceivedAt.Before(olderThan) {
			cp := *ev
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MockEventRepo) snapshot() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved := make(map[string]*model.InboundEvent, len(r.data))
	for k, v := range r.data {
		cp := *v
		saved[k] = &cp
	}
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.data = saved
	}
}

// ---- Mock SubscriptionRepository ----

type MockSubscriptionRepo struct {
	mu   sync.Mutex
	data map[string]*model.Subscription // by gateway subscription id

	SaveFunc func(ctx context.Context, tx repository.Tx, sub *model.Subscription) error
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

func NewMockSubscriptionRepo() *MockSubscriptionRepo {
	return &MockSubscriptionRepo{data: map[string]*model.Subscription{}}
}

func (r *MockSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, sub *model.Subscription) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, sub)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub.GatewaySubscriptionID == nil {
		return domain.ErrInvalidArgument
	}
	cp := *sub
	r.data[*sub.GatewaySubscriptionID] = &cp
	return nil
}

func (r *MockSubscriptionRepo) FindByGatewayID(ctx context.Context, tx repository.Tx, gatewaySubscriptionID string) (*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.data[gatewaySubscriptionID]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockSubscriptionRepo) FindByUserID(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.data {
		if s.UserID == userID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockSubscriptionRepo) snapshot() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved := make(map[string]*model.Subscription, len(r.data))
	for k, v := range r.data {
		cp := *v
		saved[k] = &cp
	}
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.data = saved
	}
}

// ---- Mock PaymentRepository ----

type MockPaymentRepo struct {
	mu   sync.Mutex
	data map[string]*model.PaymentRecord // by gateway payment intent id

	SaveFunc func(ctx context.Context, tx repository.Tx, p *model.PaymentRecord) error
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{data: map[string]*model.PaymentRecord{}}
}

func (r *MockPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.PaymentRecord) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.data[p.GatewayPaymentIntentID] = &cp
	return nil
}

func (r *MockPaymentRepo) FindByIntentID(ctx context.Context, tx repository.Tx, gatewayPaymentIntentID string) (*model.PaymentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.data[gatewayPaymentIntentID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockPaymentRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, offset, limit int) ([]*model.PaymentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.PaymentRecord
	for _, p := range r.data {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MockPaymentRepo) snapshot() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved := make(map[string]*model.PaymentRecord, len(r.data))
	for k, v := range r.data {
		cp := *v
		saved[k] = &cp
	}
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.data = saved
	}
}

// ---- Mock LedgerRepository ----

type MockLedgerRepo struct {
	mu      sync.Mutex
	Entries []*model.LedgerEntry

	AppendFunc func(ctx context.Context, tx repository.Tx, e *model.LedgerEntry) error
}

var _ repository.LedgerRepository = (*MockLedgerRepo)(nil)

func NewMockLedgerRepo() *MockLedgerRepo {
	return &MockLedgerRepo{}
}

func (r *MockLedgerRepo) Append(ctx context.Context, tx repository.Tx, e *model.LedgerEntry) error {
	if r.AppendFunc != nil {
		return r.AppendFunc(ctx, tx, e)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *e
	r.Entries = append(r.Entries, &cp)
	return nil
}

func (r *MockLedgerRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, offset, limit int) ([]*model.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*model.LedgerEntry
	for _, e := range r.Entries {
		if e.UserID == userID {
			cp := *e
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *MockLedgerRepo) CountByUser(ctx context.Context, tx repository.Tx, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.Entries {
		if e.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *MockLedgerRepo) snapshot() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved := make([]*model.LedgerEntry, len(r.Entries))
	for i, e := range r.Entries {
		cp := *e
		saved[i] = &cp
	}
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.Entries = saved
	}
}

// ---- Mock UserRepository ----

type MockUserRepo struct {
	mu   sync.Mutex
	data map[string]*model.User // by user id

	UpdateEntitlementFunc func(ctx context.Context, tx repository.Tx, userID string, ent model.Entitlement) error
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{data: map[string]*model.User{}}
}

func (r *MockUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.data[u.ID] = &cp
	return nil
}

func (r *MockUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.data[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockUserRepo) FindByGatewayCustomerID(ctx context.Context, tx repository.Tx, customerID string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.data {
		if u.GatewayCustomerID != nil && *u.GatewayCustomerID == customerID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockUserRepo) UpdateEntitlement(ctx context.Context, tx repository.Tx, userID string, ent model.Entitlement) error {
	if r.UpdateEntitlementFunc != nil {
		return r.UpdateEntitlementFunc(ctx, tx, userID, ent)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.data[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.IsPremium = ent.IsPremium
	u.Plan = ent.Plan
	u.PremiumExpiry = ent.PremiumExpiry
	return nil
}

func (r *MockUserRepo) ListPremiumExpiredBefore(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.User
	for _, u := range r.data {
		if u.IsPremium && u.PremiumExpiry != nil && u.PremiumExpiry.Before(cutoff) {
			cp := *u
			out = append(out, &cp)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MockUserRepo) snapshot() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved := make(map[string]*model.User, len(r.data))
	for k, v := range r.data {
		cp := *v
		saved[k] = &cp
	}
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.data = saved
	}
}

// ---- Mock PaymentGateway ----

type MockPaymentGateway struct {
	CreateCustomerFunc     func(ctx context.Context, email string) (string, error)
	CreateSubscriptionFunc func(ctx context.Context, customerID, planCode string) (*adapter.SubscriptionSnapshot, error)
	CancelSubscriptionFunc func(ctx context.Context, subscriptionID string, atPeriodEnd bool) (*adapter.SubscriptionSnapshot, error)
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func (g *MockPaymentGateway) Name() string { return "mock" }

func (g *MockPaymentGateway) CreateCustomer(ctx context.Context, email string) (string, error) {
	if g.CreateCustomerFunc != nil {
		return g.CreateCustomerFunc(ctx, email)
	}
	return "cus_" + uuid.NewString()[:8], nil
}

func (g *MockPaymentGateway) CreateSubscription(ctx context.Context, customerID, planCode string) (*adapter.SubscriptionSnapshot, error) {
	if g.CreateSubscriptionFunc != nil {
		return g.CreateSubscriptionFunc(ctx, customerID, planCode)
	}
	end := time.Now().Add(30 * 24 * time.Hour)
	return &adapter.SubscriptionSnapshot{
		GatewaySubscriptionID: "sub_" + uuid.NewString()[:8],
		GatewayCustomerID:     customerID,
		PlanCode:              planCode,
		Status:                string(model.SubscriptionStatusActive),
		CurrentPeriodEnd:      &end,
	}, nil
}

func (g *MockPaymentGateway) CancelSubscription(ctx context.Context, subscriptionID string, atPeriodEnd bool) (*adapter.SubscriptionSnapshot, error) {
	if g.CancelSubscriptionFunc != nil {
		return g.CancelSubscriptionFunc(ctx, subscriptionID, atPeriodEnd)
	}
	now := time.Now()
	return &adapter.SubscriptionSnapshot{
		GatewaySubscriptionID: subscriptionID,
		GatewayCustomerID:     "cus_unknown",
		Status:                string(model.SubscriptionStatusCanceled),
		CanceledAt:            &now,
	}, nil
}

// ---- Mock TransactionManager ----

// txStore is a mock store whose writes can be undone when the unit of work
// fails. snapshot captures the current state and returns the restore.
type txStore interface {
	snapshot() func()
}

type MockTxManager struct {
	stores []txStore

	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager(stores ...txStore) *MockTxManager {
	return &MockTxManager{stores: stores}
}

// WithTx runs the function against the enrolled stores and restores their
// pre-transaction state when it fails, mirroring a real rollback. Assign
// WithTxFunc to control transaction behavior in specific tests.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	restores := make([]func(), 0, len(m.stores))
	for _, s := range m.stores {
		restores = append(restores, s.snapshot())
	}
	err := fn(ctx, repository.NoTX)
	if err != nil {
		for _, restore := range restores {
			restore()
		}
	}
	return err
}

// newTestLogger creates a silent zerolog.Logger so test output stays clean.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
