package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"beautymart/internal/domain"
	"beautymart/internal/events"
	"beautymart/internal/models"
	"beautymart/internal/repository"
	"beautymart/pkg/mpesa"

	"go.uber.org/zap"
)

type memPayments struct {
	mu             sync.Mutex
	rows           map[string]models.PaymentRequest
	transitionHits int
	markErr        error
}

func newMemPayments() *memPayments {
	return &memPayments{rows: make(map[string]models.PaymentRequest)}
}

func (m *memPayments) Create(_ context.Context, p *models.PaymentRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[p.CheckoutRequestID]; ok {
		return errors.New("duplicate checkout request id")
	}
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	m.rows[p.CheckoutRequestID] = *p
	return nil
}

func (m *memPayments) GetByCheckoutID(_ context.Context, id string) (*models.PaymentRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (m *memPayments) FindByPackage(_ context.Context, packageID, timestamp string) (*models.PaymentRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.rows {
		if p.ReferenceID == packageID && p.Timestamp == timestamp && p.Purpose == domain.PurposeGenericPackage {
			return &p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memPayments) Transition(_ context.Context, id string, s models.Settlement) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok || p.Status != domain.PaymentStatusPending {
		return false, nil
	}
	code := s.ResultCode
	p.Status = s.Status
	p.MpesaReceiptNumber = s.MpesaReceiptNumber
	p.TransactionDate = s.TransactionDate
	p.PaidAmount = s.PaidAmount
	p.ResultCode = &code
	p.ResultDesc = s.ResultDesc
	p.UpdatedAt = s.SettledAt
	m.rows[id] = p
	m.transitionHits++
	return true, nil
}

func (m *memPayments) MarkReconciled(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return m.markErr
	}
	p, ok := m.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	if p.ReconciledAt == nil {
		p.ReconciledAt = &at
		m.rows[id] = p
	}
	return nil
}

func (m *memPayments) ListUnreconciled(_ context.Context, before time.Time, limit int) ([]models.PaymentRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PaymentRequest
	for _, p := range m.rows {
		if p.IsTerminal() && p.ReconciledAt == nil && p.UpdatedAt.Before(before) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memPayments) ListStalePending(_ context.Context, before time.Time, limit int) ([]models.PaymentRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PaymentRequest
	for _, p := range m.rows {
		if p.Status == domain.PaymentStatusPending && p.CreatedAt.Before(before) {
			out = append(out, p)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memPayments) get(id string) models.PaymentRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id]
}

func (m *memPayments) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type memUsers struct {
	mu        sync.Mutex
	byID      map[uint]*models.User
	nextID    uint
	creates   int
	createErr error
}

func newMemUsers() *memUsers {
	return &memUsers{byID: make(map[uint]*models.User)}
}

func (m *memUsers) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, existing := range m.byID {
		if existing.Email == u.Email {
			return errors.New("duplicate email")
		}
	}
	m.nextID++
	u.ID = m.nextID
	cp := *u
	m.byID[u.ID] = &cp
	m.creates++
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id uint) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.UserName == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memUsers) createCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creates
}

type memBookings struct {
	mu       sync.Mutex
	rows     map[uint]*models.ServiceBooking
	nextID   uint
	settles  int
	settleEr error
}

func newMemBookings() *memBookings {
	return &memBookings{rows: make(map[uint]*models.ServiceBooking)}
}

func (m *memBookings) Create(_ context.Context, b *models.ServiceBooking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	b.ID = m.nextID
	cp := *b
	m.rows[b.ID] = &cp
	return nil
}

func (m *memBookings) GetByID(_ context.Context, id uint) (*models.ServiceBooking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.rows[id]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memBookings) ListByUser(_ context.Context, userID uint) ([]models.ServiceBooking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ServiceBooking
	for _, b := range m.rows {
		if b.UserID != nil && *b.UserID == userID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *memBookings) SetCheckoutID(_ context.Context, id uint, checkoutID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	b.MpesaCheckoutRequestID = checkoutID
	return nil
}

func (m *memBookings) MarkFailed(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.rows[id]; ok && b.PaymentStatus == domain.BookingPaymentPending {
		b.PaymentStatus = domain.BookingPaymentFailed
	}
	return nil
}

func (m *memBookings) Settle(_ context.Context, id uint, status, receipt string, txDate *time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settleEr != nil {
		return false, m.settleEr
	}
	b, ok := m.rows[id]
	if !ok || b.PaymentStatus != domain.BookingPaymentPending {
		return false, nil
	}
	b.PaymentStatus = status
	b.MpesaReceiptNumber = receipt
	b.TransactionDate = txDate
	m.settles++
	return true, nil
}

func (m *memBookings) get(id uint) models.ServiceBooking {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.rows[id]
}

type fakeGateway struct {
	mu         sync.Mutex
	pushResp   *mpesa.STKPushResponse
	pushErr    error
	queryResp  *mpesa.STKQueryResponse
	queryErr   error
	pushes     []mpesa.STKPushRequest
	queries    []mpesa.STKQueryRequest
	queryDelay time.Duration
}

func (g *fakeGateway) STKPush(_ context.Context, req mpesa.STKPushRequest) (*mpesa.STKPushResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pushes = append(g.pushes, req)
	if g.pushErr != nil {
		return nil, g.pushErr
	}
	resp := *g.pushResp
	return &resp, nil
}

func (g *fakeGateway) QueryStatus(_ context.Context, req mpesa.STKQueryRequest) (*mpesa.STKQueryResponse, error) {
	g.mu.Lock()
	g.queries = append(g.queries, req)
	resp, err, delay := g.queryResp, g.queryErr, g.queryDelay
	g.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	cp := *resp
	return &cp, nil
}

func (g *fakeGateway) queryCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.queries)
}

type recordingObserver struct {
	mu     sync.Mutex
	events []events.PaymentSettled
}

func (o *recordingObserver) PaymentSettled(_ context.Context, ev events.PaymentSettled) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, ev)
}

func (o *recordingObserver) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.events)
}

type fixture struct {
	svc      *PaymentService
	payments *memPayments
	users    *memUsers
	bookings *memBookings
	gateway  *fakeGateway
	observer *recordingObserver
}

var fixedNow = time.Date(2024, 3, 5, 9, 30, 15, 0, time.UTC)

func newFixture() *fixture {
	f := &fixture{
		payments: newMemPayments(),
		users:    newMemUsers(),
		bookings: newMemBookings(),
		gateway: &fakeGateway{pushResp: &mpesa.STKPushResponse{
			MerchantRequestID: "29115-34620561-1",
			CheckoutRequestID: "ws_CO_191220191020363925",
			ResponseCode:      "0",
			CustomerMessage:   "Success. Request accepted for processing",
		}},
		observer: &recordingObserver{},
	}
	composer := mpesa.NewComposer("174379", "passkey")
	composer.Now = func() time.Time { return fixedNow }
	f.svc = NewPaymentService(f.payments, f.users, f.bookings, f.gateway, composer,
		"https://api.example.com", zap.NewNop(), f.observer)
	return f
}

// seedPending stores a pending request as if a push had been accepted.
func (f *fixture) seedPending(id, purpose, reference string, pending *models.PendingUser) {
	_ = f.payments.Create(context.Background(), &models.PaymentRequest{
		CheckoutRequestID: id,
		Purpose:           purpose,
		Amount:            1500,
		PhoneNumber:       "254712345678",
		Status:            domain.PaymentStatusPending,
		ReferenceID:       reference,
		Timestamp:         "20240305123015",
		PendingUser:       pending,
	})
}

func successCallback(id string) []byte {
	return []byte(`{"Body":{"stkCallback":{"MerchantRequestID":"29115-34620561-1","CheckoutRequestID":"` + id + `","ResultCode":0,"ResultDesc":"The service request is processed successfully.","CallbackMetadata":{"Item":[{"Name":"Amount","Value":1500.00},{"Name":"MpesaReceiptNumber","Value":"NLJ7RT61SV"},{"Name":"TransactionDate","Value":20191219102115},{"Name":"PhoneNumber","Value":254712345678}]}}}}`)
}

func failureCallback(id string, code string) []byte {
	return []byte(`{"Body":{"stkCallback":{"MerchantRequestID":"29115-34620561-1","CheckoutRequestID":"` + id + `","ResultCode":` + code + `,"ResultDesc":"Request cancelled by user"}}}`)
}

func queryResult(code string) *mpesa.STKQueryResponse {
	c := mpesa.Code(0)
	_ = c.UnmarshalJSON([]byte(`"` + code + `"`))
	return &mpesa.STKQueryResponse{
		ResponseCode: "0",
		ResultCode:   &c,
		ResultDesc:   "result " + code,
	}
}
