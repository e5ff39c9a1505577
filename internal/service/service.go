package service

import (
	"teetime/internal/clock"
	"teetime/internal/commission"
	"teetime/internal/discount"
	"teetime/internal/idempotency"
	"teetime/internal/inventory"
	"teetime/internal/messaging"
	"teetime/internal/payment"
	"teetime/internal/pricing"
)

// Stores groups the persistence the services need.
type Stores struct {
	Courses         CourseStore
	Slots           SlotLister
	Inventory       inventory.Inventory
	Discounts       DiscountStore
	Affiliates      AffiliateStore
	Bookings        BookingStore
	Commissions     commission.Store
	Payments        PaymentStore
	Ledger          EventLedger
	Reconciliations ReconciliationStore
	Tx              TxRunner
}

// Infra groups the non-persistent collaborators. Cache and Searcher may be nil.
type Infra struct {
	Cache     CourseCache
	Searcher  CourseSearcher
	Gateway   payment.Gateway
	Locker    idempotency.Locker
	Publisher messaging.Publisher
	Clock     clock.Clock
}

type Services struct {
	Courses         *CourseService
	Quotes          *QuoteService
	Coordinator     *Coordinator
	Bookings        *BookingService
	Reconciliations *ReconciliationService
}

func NewServices(stores Stores, infra Infra, cfg CoordinatorConfig) *Services {
	calculator := pricing.NewCalculator(stores.Bookings, infra.Clock)
	resolver := discount.NewResolver(stores.Discounts, infra.Clock)
	attributor := commission.NewAttributor(stores.Commissions, infra.Clock)

	courses := NewCourseService(stores.Courses, stores.Slots, infra.Cache, infra.Searcher)

	coordinator := NewCoordinator(CoordinatorDeps{
		Courses:         courses,
		Calculator:      calculator,
		Discounts:       resolver,
		DiscountStore:   stores.Discounts,
		Commissions:     attributor,
		Inventory:       stores.Inventory,
		Affiliates:      stores.Affiliates,
		Bookings:        stores.Bookings,
		Payments:        stores.Payments,
		Reconciliations: stores.Reconciliations,
		Gateway:         infra.Gateway,
		Locker:          infra.Locker,
		Tx:              stores.Tx,
		Publisher:       infra.Publisher,
		Clock:           infra.Clock,
	}, cfg)

	bookings := NewBookingService(BookingServiceDeps{
		Bookings:        stores.Bookings,
		Payments:        stores.Payments,
		Reconciliations: stores.Reconciliations,
		Ledger:          stores.Ledger,
		Commissions:     attributor,
		Gateway:         infra.Gateway,
		Locker:          infra.Locker,
		Tx:              stores.Tx,
		Publisher:       infra.Publisher,
		Clock:           infra.Clock,
	})

	return &Services{
		Courses:         courses,
		Quotes:          NewQuoteService(courses, calculator, resolver),
		Coordinator:     coordinator,
		Bookings:        bookings,
		Reconciliations: NewReconciliationService(stores.Reconciliations, infra.Clock),
	}
}
