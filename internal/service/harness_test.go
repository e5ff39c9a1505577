package service

import (
	"testing"
	"time"

	"teetime/internal/clock"
	"teetime/internal/idempotency"
	"teetime/internal/inventory"
	"teetime/internal/messaging"
	"teetime/internal/models"
	"teetime/internal/testutil"

	"github.com/shopspring/decimal"
)

var (
	testNow  = time.Date(2024, 12, 1, 9, 0, 0, 0, time.UTC)
	testSlot = models.SlotKey{CourseID: "course-1", Date: "2025-01-10", StartTime: "11:00"}
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func intPtr(n int) *int { return &n }

type harness struct {
	clock       clock.Clock
	courses     *testutil.CourseStore
	inventory   *inventory.Memory
	discounts   *testutil.DiscountStore
	affiliates  *testutil.AffiliateStore
	bookings    *testutil.BookingStore
	commissions *testutil.CommissionStore
	payments    *testutil.PaymentStore
	recs        *testutil.ReconciliationStore
	ledger      *testutil.EventLedger
	gateway     *testutil.Gateway
	bus         *messaging.MemoryBus
	locker      *idempotency.LocalLocker
	svc         *Services
}

func newHarness(t *testing.T, cfg CoordinatorConfig) *harness {
	t.Helper()
	expired := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)

	h := &harness{
		clock: clock.NewFixed(testNow),
		courses: testutil.NewCourseStore(models.Course{
			ID:           "course-1",
			Slug:         "pebble-creek",
			Name:         "Pebble Creek",
			Timezone:     "UTC",
			WeekdayPrice: dec("140"),
			WeekendPrice: dec("180"),
			Currency:     "USD",
		}),
		discounts: testutil.NewDiscountStore(
			models.DiscountCode{ID: "dc-10", Code: "SAVE10", Type: models.DiscountPercentage, Value: dec("0.10"), MaxUses: intPtr(5)},
			models.DiscountCode{ID: "dc-50", Code: "FIFTY", Type: models.DiscountFixedAmount, Value: dec("50")},
			models.DiscountCode{ID: "dc-old", Code: "OLD", Type: models.DiscountPercentage, Value: dec("0.5"), ExpiresAt: &expired},
		),
		affiliates: testutil.NewAffiliateStore(
			models.Affiliate{ID: "aff-1", Name: "Fairway Deals", ReferralCode: "FAIRWAY", CommissionRate: dec("0.1")},
		),
		bookings:    testutil.NewBookingStore(),
		commissions: testutil.NewCommissionStore(),
		payments:    testutil.NewPaymentStore(),
		recs:        testutil.NewReconciliationStore(),
		ledger:      testutil.NewEventLedger(),
		gateway:     testutil.NewGateway(),
		bus:         messaging.NewMemoryBus(),
		locker:      idempotency.NewLocalLocker(),
	}
	h.inventory = inventory.NewMemory(h.clock)
	h.inventory.Seed(testSlot, 4)

	if cfg.CommitBackoff == 0 {
		cfg.CommitBackoff = time.Millisecond
	}

	h.svc = NewServices(Stores{
		Courses:         h.courses,
		Slots:           &testutil.SlotStore{Slots: []models.Slot{{SlotKey: testSlot, Capacity: 4, HeldCount: 1}}},
		Inventory:       h.inventory,
		Discounts:       h.discounts,
		Affiliates:      h.affiliates,
		Bookings:        h.bookings,
		Commissions:     h.commissions,
		Payments:        h.payments,
		Ledger:          h.ledger,
		Reconciliations: h.recs,
		Tx:              testutil.NoTx{},
	}, Infra{
		Gateway:   h.gateway,
		Locker:    h.locker,
		Publisher: h.bus,
		Clock:     h.clock,
	}, cfg)
	return h
}

func bookingInput(key string) CreateBookingInput {
	return CreateBookingInput{
		CreateBookingRequest: models.CreateBookingRequest{
			CourseID:         "course-1",
			Date:             testSlot.Date,
			Time:             testSlot.StartTime,
			Players:          2,
			PaymentMethodRef: "tok_visa",
		},
		IdempotencyKey: key,
	}
}
