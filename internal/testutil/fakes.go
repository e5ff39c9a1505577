package testutil

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "teetime/internal/errors"
	"teetime/internal/models"
	"teetime/internal/payment"

	"github.com/google/uuid"
)

// In-memory stores mirroring the Postgres repositories' semantics.

// NoTx runs fn directly. Fakes have no rollback.
type NoTx struct{}

func (NoTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type CourseStore struct {
	mu      sync.Mutex
	courses map[string]models.Course
	Lookups int
}

func NewCourseStore(courses ...models.Course) *CourseStore {
	s := &CourseStore{courses: make(map[string]models.Course)}
	for _, c := range courses {
		s.Put(c)
	}
	return s
}

func (s *CourseStore) Put(c models.Course) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courses[c.ID] = c
}

func (s *CourseStore) GetByID(ctx context.Context, id string) (*models.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Lookups++
	c, ok := s.courses[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *CourseStore) GetBySlug(ctx context.Context, slug string) (*models.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Lookups++
	for _, c := range s.courses {
		if c.Slug == slug {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (s *CourseStore) List(ctx context.Context, query string, page, pageSize int) ([]models.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Course{}
	q := strings.ToLower(query)
	for _, c := range s.courses {
		if q == "" || strings.Contains(strings.ToLower(c.Name), q) || strings.Contains(strings.ToLower(c.Location), q) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *CourseStore) UpdatedSince(ctx context.Context, since time.Time) ([]models.Course, error) {
	return s.List(ctx, "", 1, 1000)
}

type SlotStore struct {
	Slots []models.Slot
}

func (s *SlotStore) ListByCourseDate(ctx context.Context, courseID, date string) ([]models.Slot, error) {
	out := []models.Slot{}
	for _, slot := range s.Slots {
		if slot.CourseID == courseID && slot.Date == date {
			out = append(out, slot)
		}
	}
	return out, nil
}

type AffiliateStore struct {
	byCode map[string]models.Affiliate
}

func NewAffiliateStore(affiliates ...models.Affiliate) *AffiliateStore {
	s := &AffiliateStore{byCode: make(map[string]models.Affiliate)}
	for _, a := range affiliates {
		s.byCode[a.ReferralCode] = a
	}
	return s
}

func (s *AffiliateStore) GetByReferralCode(ctx context.Context, code string) (*models.Affiliate, error) {
	a, ok := s.byCode[code]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

type discountReservation struct {
	codeID    string
	status    string
	expiresAt time.Time
}

type DiscountStore struct {
	mu           sync.Mutex
	codes        map[string]*models.DiscountCode
	reservations map[string]*discountReservation
	redemptions  map[string]string
}

func NewDiscountStore(codes ...models.DiscountCode) *DiscountStore {
	s := &DiscountStore{
		codes:        make(map[string]*models.DiscountCode),
		reservations: make(map[string]*discountReservation),
		redemptions:  make(map[string]string),
	}
	for _, c := range codes {
		c := c
		s.codes[c.Code] = &c
	}
	return s
}

func (s *DiscountStore) FindByCode(ctx context.Context, code string) (*models.DiscountCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[code]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *DiscountStore) byID(id string) *models.DiscountCode {
	for _, c := range s.codes {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func hasRoom(c *models.DiscountCode) bool {
	return c.MaxUses == nil || c.CurrentUses+c.ReservedUses < *c.MaxUses
}

func (s *DiscountStore) Reserve(ctx context.Context, codeID, holdToken string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.byID(codeID)
	if c == nil {
		return apperrors.ErrDiscountNotFound
	}
	if !hasRoom(c) {
		return apperrors.ErrDiscountExhausted
	}
	c.ReservedUses++
	s.reservations[holdToken] = &discountReservation{codeID: codeID, status: "reserved", expiresAt: expiresAt}
	return nil
}

func (s *DiscountStore) ReleaseReservation(ctx context.Context, holdToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.release(holdToken)
	return nil
}

func (s *DiscountStore) release(holdToken string) bool {
	r, ok := s.reservations[holdToken]
	if !ok || r.status != "reserved" {
		return false
	}
	r.status = "released"
	if c := s.byID(r.codeID); c != nil {
		c.ReservedUses--
	}
	return true
}

func (s *DiscountStore) ReleaseExpiredReservations(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for token, r := range s.reservations {
		if !r.expiresAt.After(now) && s.release(token) {
			n++
		}
	}
	return n, nil
}

func (s *DiscountStore) Redeem(ctx context.Context, holdToken, bookingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[holdToken]
	if !ok {
		return errors.New("no discount reservation for hold")
	}
	c := s.byID(r.codeID)
	switch r.status {
	case "redeemed":
		return nil
	case "reserved":
		c.ReservedUses--
	default:
		if !hasRoom(c) {
			return apperrors.ErrDiscountExhausted
		}
	}
	c.CurrentUses++
	r.status = "redeemed"
	s.redemptions[bookingID] = r.codeID
	return nil
}

// Uses returns the current usage counter of code.
func (s *DiscountStore) Uses(code string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[code].CurrentUses
}

// Reserved returns the number of uses of code held by unfinished attempts.
func (s *DiscountStore) Reserved(code string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[code].ReservedUses
}

type BookingStore struct {
	mu       sync.Mutex
	bookings map[string]models.Booking
	// FailCreate makes the next n Create calls fail.
	FailCreate int
}

func NewBookingStore() *BookingStore {
	return &BookingStore{bookings: make(map[string]models.Booking)}
}

var ErrInjected = errors.New("injected failure")

func (s *BookingStore) Create(ctx context.Context, b *models.Booking) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailCreate > 0 {
		s.FailCreate--
		return false, ErrInjected
	}
	for _, existing := range s.bookings {
		if existing.IdempotencyKey == b.IdempotencyKey {
			if existing.ID != b.ID {
				return false, apperrors.ErrIdempotencyConflict
			}
			*b = existing
			return false, nil
		}
	}
	if _, ok := s.bookings[b.ID]; ok {
		return false, apperrors.ErrIdempotencyConflict
	}
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	s.bookings[b.ID] = *b
	return true, nil
}

func (s *BookingStore) Put(b models.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings[b.ID] = b
}

func (s *BookingStore) find(match func(models.Booking) bool) *models.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if match(b) {
			b := b
			return &b
		}
	}
	return nil
}

func (s *BookingStore) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	return s.find(func(b models.Booking) bool { return b.ID == id }), nil
}

func (s *BookingStore) GetByIdempotencyKey(ctx context.Context, key string) (*models.Booking, error) {
	return s.find(func(b models.Booking) bool { return b.IdempotencyKey == key }), nil
}

func (s *BookingStore) GetByGatewayOrderID(ctx context.Context, orderID string) (*models.Booking, error) {
	return s.find(func(b models.Booking) bool { return b.GatewayOrderID == orderID }), nil
}

func (s *BookingStore) UpdateStatus(ctx context.Context, id string, to models.BookingStatus, from ...models.BookingStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return false, nil
	}
	for _, f := range from {
		if b.Status == f {
			b.Status = to
			b.UpdatedAt = time.Now().UTC()
			s.bookings[id] = b
			return true, nil
		}
	}
	return false, nil
}

func (s *BookingStore) CountActiveBookings(ctx context.Context, courseID, date string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.bookings {
		if b.Slot.CourseID == courseID && b.Slot.Date == date &&
			(b.Status == models.BookingConfirmed || b.Status == models.BookingPending) {
			n++
		}
	}
	return n, nil
}

func (s *BookingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bookings)
}

type CommissionStore struct {
	mu          sync.Mutex
	commissions map[string]models.Commission
}

func NewCommissionStore() *CommissionStore {
	return &CommissionStore{commissions: make(map[string]models.Commission)}
}

func (s *CommissionStore) CreateCommission(ctx context.Context, c *models.Commission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.commissions[c.BookingID]; ok {
		return apperrors.ErrDuplicateCommission
	}
	s.commissions[c.BookingID] = *c
	return nil
}

func (s *CommissionStore) CancelByBooking(ctx context.Context, bookingID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.commissions[bookingID]
	if !ok || c.Status != models.CommissionPending {
		return false, nil
	}
	c.Status = models.CommissionCancelled
	s.commissions[bookingID] = c
	return true, nil
}

func (s *CommissionStore) Get(bookingID string) (models.Commission, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.commissions[bookingID]
	return c, ok
}

func (s *CommissionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.commissions)
}

type PaymentStore struct {
	mu      sync.Mutex
	records map[string]models.PaymentRecord
}

func NewPaymentStore() *PaymentStore {
	return &PaymentStore{records: make(map[string]models.PaymentRecord)}
}

func (s *PaymentStore) Create(ctx context.Context, p *models.PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[p.GatewayOrderID]; ok {
		return nil
	}
	s.records[p.GatewayOrderID] = *p
	return nil
}

func (s *PaymentStore) Put(p models.PaymentRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[p.GatewayOrderID] = p
}

func (s *PaymentStore) GetByOrderID(ctx context.Context, orderID string) (*models.PaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.records[orderID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *PaymentStore) GetByCaptureID(ctx context.Context, captureID string) (*models.PaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.records {
		if captureID != "" && p.CaptureID == captureID {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

func (s *PaymentStore) RecordCapture(ctx context.Context, orderID, captureID string, status models.PaymentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.records[orderID]
	if !ok {
		return nil
	}
	if captureID != "" {
		p.CaptureID = captureID
	}
	p.Status = status
	s.records[orderID] = p
	return nil
}

func (s *PaymentStore) UpdateStatus(ctx context.Context, orderID string, to models.PaymentStatus, from ...models.PaymentStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.records[orderID]
	if !ok {
		return false, nil
	}
	for _, f := range from {
		if p.Status == f {
			p.Status = to
			s.records[orderID] = p
			return true, nil
		}
	}
	return false, nil
}

func (s *PaymentStore) LinkBooking(ctx context.Context, orderID, bookingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.records[orderID]
	if !ok {
		return nil
	}
	p.BookingID = &bookingID
	s.records[orderID] = p
	return nil
}

type ReconciliationStore struct {
	mu    sync.Mutex
	cases []models.Reconciliation
}

func NewReconciliationStore() *ReconciliationStore {
	return &ReconciliationStore{}
}

func (s *ReconciliationStore) Open(ctx context.Context, rc *models.Reconciliation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rc.ID == "" {
		rc.ID = uuid.NewString()
	}
	rc.Status = models.ReconciliationOpen
	rc.CreatedAt = time.Now().UTC()
	s.cases = append(s.cases, *rc)
	return nil
}

func (s *ReconciliationStore) GetByID(ctx context.Context, id string) (*models.Reconciliation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rc := range s.cases {
		if rc.ID == id {
			rc := rc
			return &rc, nil
		}
	}
	return nil, nil
}

func (s *ReconciliationStore) List(ctx context.Context, status models.ReconciliationStatus, limit int) ([]models.Reconciliation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Reconciliation{}
	for _, rc := range s.cases {
		if status == "" || rc.Status == status {
			out = append(out, rc)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *ReconciliationStore) Resolve(ctx context.Context, id, note string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.cases {
		if s.cases[i].ID != id {
			continue
		}
		if s.cases[i].Status == models.ReconciliationOpen {
			s.cases[i].Status = models.ReconciliationResolved
			s.cases[i].Note = note
			s.cases[i].ResolvedAt = &at
		}
		return nil
	}
	return apperrors.ErrReconciliationNotFound
}

func (s *ReconciliationStore) ResolveByOrder(ctx context.Context, orderID, note string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range s.cases {
		if s.cases[i].GatewayOrderID == orderID && s.cases[i].Status == models.ReconciliationOpen {
			s.cases[i].Status = models.ReconciliationResolved
			s.cases[i].Note = note
			s.cases[i].ResolvedAt = &at
			n++
		}
	}
	return n, nil
}

type EventLedger struct {
	mu   sync.Mutex
	seen map[string]bool
}

func NewEventLedger() *EventLedger {
	return &EventLedger{seen: make(map[string]bool)}
}

func (l *EventLedger) MarkProcessed(ctx context.Context, eventID, provider, eventType string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.seen[eventID] {
		return false, nil
	}
	l.seen[eventID] = true
	return true, nil
}

// Gateway is a scripted payment gateway. Captures for an order already
// captured return the earlier result, like the real providers do.
type Gateway struct {
	mu       sync.Mutex
	Result   payment.CaptureResult
	Err      error
	Delay    time.Duration
	Captures []payment.CaptureRequest
	Refunds  []payment.RefundRequest
	captured map[string]payment.CaptureResult
}

func NewGateway() *Gateway {
	return &Gateway{
		Result:   payment.CaptureResult{Status: payment.CaptureSucceeded},
		captured: make(map[string]payment.CaptureResult),
	}
}

func (g *Gateway) Name() string { return "fake" }

func (g *Gateway) Capture(ctx context.Context, req payment.CaptureRequest) (payment.CaptureResult, error) {
	g.mu.Lock()
	g.Captures = append(g.Captures, req)
	delay, result, err := g.Delay, g.Result, g.Err
	prev, seen := g.captured[req.OrderID]
	g.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return payment.CaptureResult{}, payment.ErrTimeout
		}
	}
	if err != nil {
		return payment.CaptureResult{}, err
	}
	if seen {
		return prev, nil
	}

	result.OrderID = req.OrderID
	if result.CaptureID == "" {
		result.CaptureID = "cap-" + req.OrderID
	}
	if result.Status == payment.CaptureSucceeded {
		g.mu.Lock()
		g.captured[req.OrderID] = result
		g.mu.Unlock()
	}
	return result, nil
}

func (g *Gateway) Refund(ctx context.Context, req payment.RefundRequest) (payment.RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return payment.RefundResult{}, g.Err
	}
	g.Refunds = append(g.Refunds, req)
	return payment.RefundResult{RefundID: "ref-" + req.CaptureID, Status: "refunded"}, nil
}

func (g *Gateway) CaptureCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Captures)
}

// Searcher is an in-memory course index.
type Searcher struct {
	Courses []models.Course
	Err     error
	Indexed []string
}

func (s *Searcher) Search(ctx context.Context, query string, page, pageSize int) ([]models.Course, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Courses, nil
}

func (s *Searcher) IndexCourse(ctx context.Context, course *models.Course) error {
	if s.Err != nil {
		return s.Err
	}
	s.Indexed = append(s.Indexed, course.ID)
	return nil
}
