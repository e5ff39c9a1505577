package service

import (
	"context"
	"time"

	"teetime/internal/models"
)

// The interfaces below are satisfied by the Postgres repositories and by the
// in-memory fakes in internal/testutil.

type CourseStore interface {
	GetByID(ctx context.Context, id string) (*models.Course, error)
	GetBySlug(ctx context.Context, slug string) (*models.Course, error)
	List(ctx context.Context, query string, page, pageSize int) ([]models.Course, error)
	UpdatedSince(ctx context.Context, since time.Time) ([]models.Course, error)
}

// CourseCache is an optional read-through cache for course lookups.
// Misses return nil, nil.
type CourseCache interface {
	GetBySlug(ctx context.Context, slug string) (*models.Course, error)
	GetByID(ctx context.Context, id string) (*models.Course, error)
	Set(ctx context.Context, course *models.Course) error
}

// CourseSearcher is an optional full-text course index.
type CourseSearcher interface {
	Search(ctx context.Context, query string, page, pageSize int) ([]models.Course, error)
	IndexCourse(ctx context.Context, course *models.Course) error
}

type SlotLister interface {
	ListByCourseDate(ctx context.Context, courseID, date string) ([]models.Slot, error)
}

type AffiliateStore interface {
	GetByReferralCode(ctx context.Context, code string) (*models.Affiliate, error)
}

// DiscountStore reserves a use of a code against a hold, then either redeems
// it in the booking commit or releases it on a rollback edge.
type DiscountStore interface {
	FindByCode(ctx context.Context, code string) (*models.DiscountCode, error)
	Reserve(ctx context.Context, codeID, holdToken string, expiresAt time.Time) error
	ReleaseReservation(ctx context.Context, holdToken string) error
	Redeem(ctx context.Context, holdToken, bookingID string) error
}

type BookingStore interface {
	Create(ctx context.Context, booking *models.Booking) (bool, error)
	GetByID(ctx context.Context, id string) (*models.Booking, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*models.Booking, error)
	GetByGatewayOrderID(ctx context.Context, orderID string) (*models.Booking, error)
	UpdateStatus(ctx context.Context, id string, to models.BookingStatus, from ...models.BookingStatus) (bool, error)
	CountActiveBookings(ctx context.Context, courseID, date string) (int, error)
}

type PaymentStore interface {
	Create(ctx context.Context, p *models.PaymentRecord) error
	GetByOrderID(ctx context.Context, orderID string) (*models.PaymentRecord, error)
	GetByCaptureID(ctx context.Context, captureID string) (*models.PaymentRecord, error)
	RecordCapture(ctx context.Context, orderID, captureID string, status models.PaymentStatus) error
	UpdateStatus(ctx context.Context, orderID string, to models.PaymentStatus, from ...models.PaymentStatus) (bool, error)
	LinkBooking(ctx context.Context, orderID, bookingID string) error
}

type ReconciliationStore interface {
	Open(ctx context.Context, rc *models.Reconciliation) error
	GetByID(ctx context.Context, id string) (*models.Reconciliation, error)
	List(ctx context.Context, status models.ReconciliationStatus, limit int) ([]models.Reconciliation, error)
	Resolve(ctx context.Context, id, note string, at time.Time) error
	ResolveByOrder(ctx context.Context, orderID, note string, at time.Time) (int, error)
}

// EventLedger remembers which webhook events were already applied.
// MarkProcessed returns false when eventID was seen before.
type EventLedger interface {
	MarkProcessed(ctx context.Context, eventID, provider, eventType string) (bool, error)
}

// TxRunner runs fn in one database transaction carried by ctx.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
