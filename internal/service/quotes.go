package service

import (
	"context"
	"errors"

	"teetime/internal/discount"
	apperrors "teetime/internal/errors"
	"teetime/internal/models"
	"teetime/internal/pricing"
)

// QuoteService prices a tee time without reserving anything. Booking creation
// uses the same calculator.
type QuoteService struct {
	courses    *CourseService
	calculator *pricing.Calculator
	discounts  *discount.Resolver
}

func NewQuoteService(courses *CourseService, calculator *pricing.Calculator, discounts *discount.Resolver) *QuoteService {
	return &QuoteService{courses: courses, calculator: calculator, discounts: discounts}
}

// Quote returns the price breakdown. A rejected discount code is reported in
// the response rather than failing the quote.
func (s *QuoteService) Quote(ctx context.Context, req models.QuoteRequest) (*models.QuoteResponse, error) {
	course, err := s.courses.Resolve(ctx, req.CourseID, req.CourseSlug)
	if err != nil {
		return nil, err
	}

	q, err := s.calculator.Quote(ctx, *course, req.Date, req.Time, req.Players)
	if err != nil {
		return nil, err
	}

	resp := &models.QuoteResponse{
		CourseID: course.ID,
		Currency: course.Currency,
		Quote:    q,
	}

	if req.DiscountCode != "" {
		resp.DiscountCode = discount.Normalize(req.DiscountCode)
		_, adjusted, err := s.discounts.Resolve(ctx, req.DiscountCode, q.TotalPrice)
		switch {
		case isDiscountRejection(err):
			resp.DiscountError = err.Error()
		case err != nil:
			return nil, err
		default:
			resp.AdjustedPrice = &adjusted
		}
	}
	return resp, nil
}

func isDiscountRejection(err error) bool {
	return errors.Is(err, apperrors.ErrDiscountNotFound) ||
		errors.Is(err, apperrors.ErrDiscountExpired) ||
		errors.Is(err, apperrors.ErrDiscountExhausted) ||
		errors.Is(err, apperrors.ErrDiscountBelowMinimum)
}
