package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"teetime/internal/models"

	"github.com/google/uuid"
)

// APIValidator - smoke-проверка запущенного API на соответствие контракту
type APIValidator struct {
	baseURL string
	client  *http.Client
}

// NewAPIValidator создает новый валидатор
func NewAPIValidator(baseURL string) *APIValidator {
	return &APIValidator{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// ValidateAll проверяет все группы endpoints
func (v *APIValidator) ValidateAll() error {
	slog.Info("Starting API validation", "base_url", v.baseURL)

	checks := []struct {
		name string
		fn   func() error
	}{
		{"health", v.validateHealth},
		{"courses", v.validateCourses},
		{"quotes", v.validateQuotes},
		{"bookings", v.validateBookings},
		{"payments", v.validatePayments},
		{"admin", v.validateAdmin},
	}

	for _, check := range checks {
		if err := check.fn(); err != nil {
			return fmt.Errorf("%s validation failed: %w", check.name, err)
		}
		slog.Info("Endpoints valid", "group", check.name)
	}
	return nil
}

func (v *APIValidator) validateHealth() error {
	return v.expectStatus(http.MethodGet, "/health", nil, nil, http.StatusOK, nil)
}

func (v *APIValidator) validateCourses() error {
	var courses models.ListCoursesResponse
	if err := v.expectStatus(http.MethodGet, "/api/courses", nil, nil, http.StatusOK, &courses); err != nil {
		return err
	}
	if len(courses) == 0 {
		slog.Warn("No courses found, skipping slot listing check")
		return nil
	}

	tomorrow := time.Now().AddDate(0, 0, 1).Format(models.DateLayout)
	var slots models.ListSlotsResponse
	path := fmt.Sprintf("/api/courses/%s/slots?date=%s", courses[0].Slug, tomorrow)
	if err := v.expectStatus(http.MethodGet, path, nil, nil, http.StatusOK, &slots); err != nil {
		return err
	}
	if slots.CourseID != courses[0].ID {
		return fmt.Errorf("GET %s: expected course_id %s, got %s", path, courses[0].ID, slots.CourseID)
	}

	return v.expectCode(http.MethodGet, "/api/courses/no-such-course/slots?date="+tomorrow, nil, nil, http.StatusNotFound, "course_not_found")
}

func (v *APIValidator) validateQuotes() error {
	bad := models.QuoteRequest{CourseSlug: "any", Date: "10/01/2025", Time: "11:00", Players: 2}
	return v.expectCode(http.MethodPost, "/api/quotes", bad, nil, http.StatusBadRequest, "validation_error")
}

func (v *APIValidator) validateBookings() error {
	req := models.CreateBookingRequest{
		CourseSlug:       "any",
		Date:             time.Now().AddDate(0, 0, 1).Format(models.DateLayout),
		Time:             "09:00",
		Players:          1,
		PaymentMethodRef: "tok_validate",
	}
	// Idempotency-Key is mandatory.
	if err := v.expectCode(http.MethodPost, "/api/bookings", req, nil, http.StatusBadRequest, "validation_error"); err != nil {
		return err
	}
	return v.expectCode(http.MethodGet, "/api/bookings/"+uuid.NewString(), nil, nil, http.StatusNotFound, "booking_not_found")
}

func (v *APIValidator) validatePayments() error {
	return v.expectStatus(http.MethodPost, "/api/payments/webhooks/no-such-provider", map[string]string{}, nil, http.StatusNotFound, nil)
}

func (v *APIValidator) validateAdmin() error {
	return v.expectStatus(http.MethodGet, "/api/admin/reconciliations", nil, nil, http.StatusUnauthorized, nil)
}

func (v *APIValidator) expectCode(method, path string, body interface{}, headers map[string]string, status int, code string) error {
	var errResp models.ErrorResponse
	if err := v.expectStatus(method, path, body, headers, status, &errResp); err != nil {
		return err
	}
	if errResp.Code != code {
		return fmt.Errorf("%s %s: expected code %q, got %q", method, path, code, errResp.Code)
	}
	return nil
}

func (v *APIValidator) expectStatus(method, path string, body interface{}, headers map[string]string, status int, out interface{}) error {
	resp, err := v.makeRequest(method, path, body, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != status {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s: expected %d, got %d: %s", method, path, status, resp.StatusCode, string(raw))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
		}
	}
	return nil
}

func (v *APIValidator) makeRequest(method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, v.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, val := range headers {
		req.Header.Set(k, val)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	return resp, nil
}
