package repository

import (
	"teetime/internal/clock"
	"teetime/internal/database"
)

type Repositories struct {
	Courses         *CourseRepository
	Slots           *SlotRepository
	Discounts       *DiscountRepository
	Affiliates      *AffiliateRepository
	Bookings        *BookingRepository
	Commissions     *CommissionRepository
	Payments        *PaymentRepository
	Ledger          *EventLedgerRepository
	Reconciliations *ReconciliationRepository
}

func NewRepositories(db *database.DB, clk clock.Clock) *Repositories {
	return &Repositories{
		Courses:         NewCourseRepository(db),
		Slots:           NewSlotRepository(db, clk),
		Discounts:       NewDiscountRepository(db),
		Affiliates:      NewAffiliateRepository(db),
		Bookings:        NewBookingRepository(db),
		Commissions:     NewCommissionRepository(db),
		Payments:        NewPaymentRepository(db),
		Ledger:          NewEventLedgerRepository(db),
		Reconciliations: NewReconciliationRepository(db),
	}
}
