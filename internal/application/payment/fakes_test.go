package payment

import (
	"context"
	"sort"
	"time"

	"github.com/consultpay/backend/internal/domain/payment"
	"github.com/consultpay/backend/internal/domain/session"
	"github.com/consultpay/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// In-memory fakes for the application-layer tests. Repositories store
// copies so saved state never aliases the values handed to callers.

type fakePaymentRepo struct {
	records map[string]payment.PaymentRecord
	findErr error
	saveErr error
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{records: make(map[string]payment.PaymentRecord)}
}

func (r *fakePaymentRepo) FindByID(_ context.Context, id string) (*payment.PaymentRecord, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	rec, ok := r.records[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &rec, nil
}

func (r *fakePaymentRepo) FindByIdempotencyKey(_ context.Context, key string) (*payment.PaymentRecord, error) {
	for _, rec := range r.records {
		if rec.IdempotencyKey == key {
			found := rec
			return &found, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakePaymentRepo) FindActiveByTuple(_ context.Context, key payment.LockKey) ([]payment.PaymentRecord, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	var out []payment.PaymentRecord
	for _, rec := range r.records {
		if rec.ClientRef == key.ClientRef && rec.PayeeRef == key.PayeeRef &&
			rec.Amount == key.Amount && rec.Currency == key.Currency &&
			!rec.Status.IsTerminal() {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakePaymentRepo) FindAuthorizedBefore(_ context.Context, cutoff time.Time) ([]payment.PaymentRecord, error) {
	var out []payment.PaymentRecord
	for _, rec := range r.records {
		if (rec.Status == payment.StatusAuthorized || rec.Status == payment.StatusActionRequired) &&
			rec.CreatedAt.Before(cutoff) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakePaymentRepo) FindAuthorized(_ context.Context) ([]payment.PaymentRecord, error) {
	var out []payment.PaymentRecord
	for _, rec := range r.records {
		if rec.Status == payment.StatusAuthorized {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakePaymentRepo) FindUncapturedBySession(_ context.Context, sessionRef uuid.UUID) ([]payment.PaymentRecord, error) {
	var out []payment.PaymentRecord
	for _, rec := range r.records {
		if rec.SessionRef == sessionRef &&
			(rec.Status == payment.StatusAuthorized || rec.Status == payment.StatusActionRequired) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakePaymentRepo) Save(_ context.Context, p *payment.PaymentRecord) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.records[p.ID] = *p
	return nil
}

type fakeTransferRepo struct {
	transfers map[uuid.UUID]payment.PendingTransfer
	saveErr   error
}

func newFakeTransferRepo() *fakeTransferRepo {
	return &fakeTransferRepo{transfers: make(map[uuid.UUID]payment.PendingTransfer)}
}

func (r *fakeTransferRepo) FindByID(_ context.Context, id uuid.UUID) (*payment.PendingTransfer, error) {
	t, ok := r.transfers[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &t, nil
}

func (r *fakeTransferRepo) FindAwaitingByPayee(_ context.Context, payeeRef uuid.UUID) ([]payment.PendingTransfer, error) {
	var out []payment.PendingTransfer
	for _, t := range r.transfers {
		if t.PayeeRef == payeeRef && t.Status == payment.TransferStatusAwaitingVerification {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeTransferRepo) FindStuckInFlight(_ context.Context, cutoff time.Time) ([]payment.PendingTransfer, error) {
	var out []payment.PendingTransfer
	for _, t := range r.transfers {
		if t.Status == payment.TransferStatusInFlight &&
			t.ProcessingStartedAt != nil && t.ProcessingStartedAt.Before(cutoff) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeTransferRepo) FindFailedRetryableByPayee(_ context.Context, payeeRef uuid.UUID) ([]payment.PendingTransfer, error) {
	var out []payment.PendingTransfer
	for _, t := range r.transfers {
		if t.PayeeRef == payeeRef && t.Status == payment.TransferStatusFailed &&
			t.RetryCount < payment.MaxTransferAttempts {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeTransferRepo) Save(_ context.Context, t *payment.PendingTransfer) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.transfers[t.ID] = *t
	return nil
}

func (r *fakeTransferRepo) byPayment(paymentRef string) *payment.PendingTransfer {
	for _, t := range r.transfers {
		if t.PaymentRef == paymentRef {
			found := t
			return &found
		}
	}
	return nil
}

type fakeLockRepo struct {
	locks     map[uuid.UUID]payment.PaymentLock
	createErr error
}

func newFakeLockRepo() *fakeLockRepo {
	return &fakeLockRepo{locks: make(map[uuid.UUID]payment.PaymentLock)}
}

func (r *fakeLockRepo) FindByKey(_ context.Context, key payment.LockKey) (*payment.PaymentLock, error) {
	for _, l := range r.locks {
		if l.Key() == key {
			found := l
			return &found, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeLockRepo) Create(_ context.Context, lock *payment.PaymentLock) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.locks[lock.ID] = *lock
	return nil
}

func (r *fakeLockRepo) Save(_ context.Context, lock *payment.PaymentLock) error {
	r.locks[lock.ID] = *lock
	return nil
}

func (r *fakeLockRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.locks, id)
	return nil
}

type fakeSessionRepo struct {
	sessions map[uuid.UUID]session.ConsultationSession
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[uuid.UUID]session.ConsultationSession)}
}

func (r *fakeSessionRepo) FindByID(_ context.Context, id uuid.UUID) (*session.ConsultationSession, error) {
	s, ok := r.sessions[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &s, nil
}

func (r *fakeSessionRepo) FindStaleNonTerminal(_ context.Context, statuses []session.Status, cutoff time.Time) ([]session.ConsultationSession, error) {
	var out []session.ConsultationSession
	for _, s := range r.sessions {
		for _, st := range statuses {
			if s.Status == st && s.StatusChangedAt.Before(cutoff) {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) Save(_ context.Context, s *session.ConsultationSession) error {
	r.sessions[s.ID] = *s
	return nil
}

func (r *fakeSessionRepo) put(s *session.ConsultationSession) {
	r.sessions[s.ID] = *s
}

// passScope runs transactional functions directly against the fakes.
type passScope struct {
	payments *fakePaymentRepo
	locks    *fakeLockRepo
	sessions *fakeSessionRepo
	execErr  error
}

func (s *passScope) Payments() payment.PaymentRecordRepository { return s.payments }
func (s *passScope) Locks() payment.PaymentLockRepository      { return s.locks }
func (s *passScope) Sessions() session.Repository              { return s.sessions }

func (s *passScope) Execute(_ context.Context, fn func(TransactionalRepositories) error) error {
	if s.execErr != nil {
		return s.execErr
	}
	return fn(s)
}

type fakeGateway struct {
	family payment.GatewayFamily

	authorizeResult *payment.AuthorizeResult
	authorizeErr    error
	authorizeCalls  []payment.AuthorizeRequest

	captureResult *payment.CaptureResult
	captureErr    error
	captureCalls  int

	cancelErr   error
	cancelCalls int

	refundResult *payment.RefundResult
	refundErr    error
	refundCalls  []payment.RefundRequest

	transferResult *payment.TransferResult
	transferErr    error
	transferCalls  []payment.TransferRequest

	statuses  map[string]payment.AuthorizationStatus
	statusErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		family:   payment.GatewayFamilyCard,
		statuses: make(map[string]payment.AuthorizationStatus),
	}
}

func (g *fakeGateway) Family() payment.GatewayFamily { return g.family }

func (g *fakeGateway) Authorize(_ context.Context, req payment.AuthorizeRequest) (*payment.AuthorizeResult, error) {
	g.authorizeCalls = append(g.authorizeCalls, req)
	if g.authorizeErr != nil {
		return nil, g.authorizeErr
	}
	if g.authorizeResult != nil {
		return g.authorizeResult, nil
	}
	return &payment.AuthorizeResult{
		AuthorizationID: "pi_" + uuid.NewString(),
		Status:          payment.AuthStatusRequiresCapture,
	}, nil
}

func (g *fakeGateway) Capture(_ context.Context, authorizationID, _ string) (*payment.CaptureResult, error) {
	g.captureCalls++
	if g.captureErr != nil {
		return nil, g.captureErr
	}
	if g.captureResult != nil {
		return g.captureResult, nil
	}
	return &payment.CaptureResult{CapturedAmount: 0}, nil
}

func (g *fakeGateway) Cancel(_ context.Context, _, _ string) error {
	g.cancelCalls++
	return g.cancelErr
}

func (g *fakeGateway) Refund(_ context.Context, req payment.RefundRequest) (*payment.RefundResult, error) {
	g.refundCalls = append(g.refundCalls, req)
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	if g.refundResult != nil {
		return g.refundResult, nil
	}
	return &payment.RefundResult{RefundID: "re_" + uuid.NewString(), RefundedAmount: req.Amount}, nil
}

func (g *fakeGateway) Transfer(_ context.Context, req payment.TransferRequest) (*payment.TransferResult, error) {
	g.transferCalls = append(g.transferCalls, req)
	if g.transferErr != nil {
		return nil, g.transferErr
	}
	if g.transferResult != nil {
		return g.transferResult, nil
	}
	return &payment.TransferResult{TransferID: "tr_" + uuid.NewString()}, nil
}

func (g *fakeGateway) RetrieveStatus(_ context.Context, authorizationID string) (payment.AuthorizationStatus, error) {
	if g.statusErr != nil {
		return "", g.statusErr
	}
	if status, ok := g.statuses[authorizationID]; ok {
		return status, nil
	}
	return payment.AuthStatusRequiresCapture, nil
}

type fakeRegistry struct {
	gw payment.Gateway
}

func (r *fakeRegistry) Gateway(payment.GatewayFamily) (payment.Gateway, error) { return r.gw, nil }
func (r *fakeRegistry) Default() payment.Gateway                               { return r.gw }

type fakeVerification struct {
	capabilities map[uuid.UUID]payment.PayoutCapability
	err          error
}

func newFakeVerification() *fakeVerification {
	return &fakeVerification{capabilities: make(map[uuid.UUID]payment.PayoutCapability)}
}

func (v *fakeVerification) PayoutCapability(_ context.Context, payeeRef uuid.UUID) (payment.PayoutCapability, error) {
	if v.err != nil {
		return payment.PayoutCapability{}, v.err
	}
	return v.capabilities[payeeRef], nil
}

type notifierCall struct {
	who        uuid.UUID
	paymentRef string
	amount     int64
}

type fakeNotifier struct {
	refunded []notifierCall
	settled  []notifierCall
}

func (n *fakeNotifier) NotifyClientRefunded(_ context.Context, clientRef uuid.UUID, paymentRef string, amount int64, _ string) {
	n.refunded = append(n.refunded, notifierCall{who: clientRef, paymentRef: paymentRef, amount: amount})
}

func (n *fakeNotifier) NotifyPayeeSettled(_ context.Context, payeeRef uuid.UUID, paymentRef string, amount int64, _ string) {
	n.settled = append(n.settled, notifierCall{who: payeeRef, paymentRef: paymentRef, amount: amount})
}

type alertRecord struct {
	alertType string
	priority  payment.AlertPriority
	payload   map[string]string
}

type fakeAlerts struct {
	alerts []alertRecord
}

func (a *fakeAlerts) Receive(_ context.Context, alertType string, priority payment.AlertPriority, payload map[string]string) {
	a.alerts = append(a.alerts, alertRecord{alertType: alertType, priority: priority, payload: payload})
}

func (a *fakeAlerts) typesSeen() []string {
	out := make([]string, 0, len(a.alerts))
	for _, al := range a.alerts {
		out = append(out, al.alertType)
	}
	return out
}

type fakeAudit struct {
	entries []payment.AuditEntry
}

func (a *fakeAudit) Append(_ context.Context, entry *payment.AuditEntry) error {
	a.entries = append(a.entries, *entry)
	return nil
}

func (a *fakeAudit) actions() []string {
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

type fakeLimiter struct {
	allowed bool
	err     error
	calls   int
}

func (l *fakeLimiter) Allow(context.Context, uuid.UUID) (bool, error) {
	l.calls++
	return l.allowed, l.err
}

type fakeCatalog struct {
	basePrices map[string]int64 // kind:currency
	promo      *Promotion
	discounts  map[string]DiscountCode
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		basePrices: make(map[string]int64),
		discounts:  make(map[string]DiscountCode),
	}
}

func (c *fakeCatalog) setBase(kind payment.ServiceKind, currency string, price int64) {
	c.basePrices[string(kind)+":"+currency] = price
}

func (c *fakeCatalog) BasePrice(_ context.Context, kind payment.ServiceKind, currency string) (int64, error) {
	price, ok := c.basePrices[string(kind)+":"+currency]
	if !ok {
		return 0, shared.ErrNotFound
	}
	return price, nil
}

func (c *fakeCatalog) ActivePromotion(_ context.Context, kind payment.ServiceKind, currency string, now time.Time) (*Promotion, error) {
	if c.promo == nil || c.promo.ServiceKind != kind || c.promo.Currency != currency || !c.promo.Active(now) {
		return nil, shared.ErrNotFound
	}
	promo := *c.promo
	return &promo, nil
}

func (c *fakeCatalog) Discount(_ context.Context, code string) (*DiscountCode, error) {
	d, ok := c.discounts[code]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &d, nil
}

type fakePayoutConfig struct {
	overrides map[uuid.UUID]payment.PayoutOverride
	accounts  map[string]payment.ExternalAccount
}

func newFakePayoutConfig() *fakePayoutConfig {
	return &fakePayoutConfig{
		overrides: make(map[uuid.UUID]payment.PayoutOverride),
		accounts:  make(map[string]payment.ExternalAccount),
	}
}

func (c *fakePayoutConfig) FindOverrideByPayee(_ context.Context, payeeRef uuid.UUID) (*payment.PayoutOverride, error) {
	o, ok := c.overrides[payeeRef]
	if !ok || !o.Active {
		return nil, shared.ErrNotFound
	}
	return &o, nil
}

func (c *fakePayoutConfig) FindExternalAccount(_ context.Context, ref string) (*payment.ExternalAccount, error) {
	a, ok := c.accounts[ref]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &a, nil
}

type fakeProbe struct {
	live map[uuid.UUID]bool
	err  error
}

func (p *fakeProbe) HasLiveConnection(_ context.Context, sessionID uuid.UUID) (bool, error) {
	if p.err != nil {
		return false, p.err
	}
	return p.live[sessionID], nil
}

// fixture wires every collaborator fake plus the services under test.
type fixture struct {
	payments     *fakePaymentRepo
	transfers    *fakeTransferRepo
	locks        *fakeLockRepo
	sessions     *fakeSessionRepo
	scope        *passScope
	gateway      *fakeGateway
	registry     *fakeRegistry
	verification *fakeVerification
	notifier     *fakeNotifier
	alerts       *fakeAlerts
	audit        *fakeAudit
	limiter      *fakeLimiter
	catalog      *fakeCatalog
	payoutConfig *fakePayoutConfig
	probe        *fakeProbe

	guard      *DuplicateGuard
	pricing    *PricingService
	sync       *CrossEntitySync
	settlement *SettlementService
	authorize  *AuthorizeService
	processor  *TransferProcessor
}

func newFixture() *fixture {
	logger := zap.NewNop()

	f := &fixture{
		payments:     newFakePaymentRepo(),
		transfers:    newFakeTransferRepo(),
		locks:        newFakeLockRepo(),
		sessions:     newFakeSessionRepo(),
		gateway:      newFakeGateway(),
		verification: newFakeVerification(),
		notifier:     &fakeNotifier{},
		alerts:       &fakeAlerts{},
		audit:        &fakeAudit{},
		limiter:      &fakeLimiter{allowed: true},
		catalog:      newFakeCatalog(),
		payoutConfig: newFakePayoutConfig(),
		probe:        &fakeProbe{live: make(map[uuid.UUID]bool)},
	}
	f.scope = &passScope{payments: f.payments, locks: f.locks, sessions: f.sessions}
	f.registry = &fakeRegistry{gw: f.gateway}

	f.guard = NewDuplicateGuard(f.scope, f.payments, f.sessions, 10*time.Minute, logger)
	f.pricing = NewPricingService(f.catalog, logger)
	f.sync = NewCrossEntitySync(f.scope, f.alerts, logger)
	f.settlement = NewSettlementService(
		f.payments, f.registry, f.sync, f.verification,
		f.payoutConfig, f.notifier, f.audit, f.alerts, logger)
	f.authorize = NewAuthorizeService(
		f.guard, f.pricing, f.verification, f.registry,
		f.payments, f.transfers, f.limiter, f.audit, f.alerts,
		map[string]shared.AmountBounds{
			"USD": {Min: 500, Max: 50000},
			"EUR": {Min: 500, Max: 50000},
		}, logger)
	f.processor = NewTransferProcessor(
		f.transfers, f.payments, f.registry, f.verification,
		f.settlement, f.sync, f.notifier, f.audit, f.alerts, logger)

	return f
}

func (f *fixture) reconciliation(cfg ReconciliationConfig) *ReconciliationService {
	return NewReconciliationService(
		f.payments, f.sessions, f.settlement, f.probe, f.alerts, cfg, zap.NewNop())
}

// seedPayment persists an authorized record and its completed session.
func (f *fixture) seedPayment(mode payment.RoutingMode) *payment.PaymentRecord {
	clientRef, payeeRef, sessionRef := uuid.New(), uuid.New(), uuid.New()
	record, err := payment.NewPaymentRecord(
		"pi_"+uuid.NewString(), clientRef, payeeRef, sessionRef,
		payment.ServiceKindVideoConsultation,
		10000, 2000, 8000, "USD",
		mode, payment.GatewayFamilyCard,
		mode == payment.RoutingDirectSplit,
		"key_"+uuid.NewString())
	if err != nil {
		panic(err)
	}
	f.payments.records[record.ID] = *record
	f.seedSession(sessionRef, clientRef, payeeRef, session.StatusCompleted, 600)
	return record
}

// seedSession persists a session under the given ID so payments correlate.
func (f *fixture) seedSession(id, clientRef, payeeRef uuid.UUID, status session.Status, duration int64) *session.ConsultationSession {
	base := shared.NewBaseEntity()
	base.ID = id
	sess := &session.ConsultationSession{
		BaseEntity:      base,
		ClientRef:       clientRef,
		PayeeRef:        payeeRef,
		Status:          status,
		DurationSeconds: duration,
		StatusChangedAt: time.Now(),
	}
	f.sessions.put(sess)
	return sess
}
