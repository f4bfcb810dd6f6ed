package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/ConsultBookBack/internal/models"
	"github.com/saeid-a/ConsultBookBack/internal/repository"
	"github.com/saeid-a/ConsultBookBack/internal/services"
)

type bookingService interface {
	CreateBooking(ctx context.Context, req services.CreateBookingRequest) (*models.BookingDetail, error)
	GetBooking(ctx context.Context, id int64) (*models.BookingDetail, error)
	LookupBooking(ctx context.Context, reference, email string) (*models.BookingDetail, error)
	CancelByCustomer(ctx context.Context, reference, email string) (*models.BookingDetail, error)
	ListBookings(ctx context.Context, filter repository.BookingListFilter, page, limit int) (*services.ListBookingsResult, error)
	UpdateStatus(ctx context.Context, id int64, requestedStatus string) (*models.BookingDetail, error)
	DeleteBooking(ctx context.Context, id int64) error
}

type refundService interface {
	Refund(ctx context.Context, bookingID int64) (*models.Booking, error)
}

type calendarSyncService interface {
	Enabled() bool
	SyncBooking(ctx context.Context, booking *models.Booking, ctype *models.ConsultationType) error
}

type BookingHandler struct {
	bookings bookingService
	payments refundService
	calendar calendarSyncService
	reporter errorReporter
}

func NewBookingHandler(
	bookings *services.BookingService,
	payments *services.PaymentService,
	calendar *services.CalendarService,
	reporter *services.ErrorReporter,
) *BookingHandler {
	return &BookingHandler{bookings: bookings, payments: payments, calendar: calendar, reporter: reporter}
}

type bookingLookupRequest struct {
	ReferenceNumber string `json:"reference_number"`
	Email           string `json:"email"`
}

type updateBookingStatusRequest struct {
	Status string `json:"status"`
}

func (h *BookingHandler) CreateBooking(c *fiber.Ctx) error {
	var req services.CreateBookingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	booking, err := h.bookings.CreateBooking(c.Context(), req)
	if err != nil {
		return respondError(c, h.reporter, "http.bookings.create", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"booking":          booking,
		"payment_required": booking.PaymentAmount > 0 && booking.PaymentStatus != models.PaymentStatusPaid,
	})
}

func (h *BookingHandler) LookupBooking(c *fiber.Ctx) error {
	req, ok := parseLookupRequest(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "reference_number and email are required"})
	}
	booking, err := h.bookings.LookupBooking(c.Context(), req.ReferenceNumber, req.Email)
	if err != nil {
		return respondError(c, h.reporter, "http.bookings.lookup", err)
	}
	return c.JSON(fiber.Map{"booking": booking})
}

func (h *BookingHandler) CancelBooking(c *fiber.Ctx) error {
	req, ok := parseLookupRequest(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "reference_number and email are required"})
	}
	booking, err := h.bookings.CancelByCustomer(c.Context(), req.ReferenceNumber, req.Email)
	if err != nil {
		return respondError(c, h.reporter, "http.bookings.cancel", err)
	}
	return c.JSON(fiber.Map{"booking": booking})
}

func parseLookupRequest(c *fiber.Ctx) (bookingLookupRequest, bool) {
	var req bookingLookupRequest
	if err := c.BodyParser(&req); err != nil {
		return req, false
	}
	req.ReferenceNumber = strings.TrimSpace(req.ReferenceNumber)
	req.Email = strings.TrimSpace(req.Email)
	return req, req.ReferenceNumber != "" && req.Email != ""
}

func (h *BookingHandler) ListBookings(c *fiber.Ctx) error {
	typeID, ok := parseOptionalID(c, "consultation_type_id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid consultation_type_id"})
	}
	filter := repository.BookingListFilter{
		Status:   strings.TrimSpace(c.Query("status")),
		DateFrom: strings.TrimSpace(c.Query("date_from")),
		DateTo:   strings.TrimSpace(c.Query("date_to")),
		Search:   strings.TrimSpace(c.Query("search")),
	}
	if typeID != nil {
		filter.ConsultationTypeID = *typeID
	}
	page, limit := parsePagination(c)

	result, err := h.bookings.ListBookings(c.Context(), filter, page, limit)
	if err != nil {
		return respondError(c, h.reporter, "http.admin.bookings.list", err)
	}
	return c.JSON(fiber.Map{
		"bookings":   result.Bookings,
		"pagination": result.Meta,
	})
}

func (h *BookingHandler) GetBooking(c *fiber.Ctx) error {
	id, ok := parseIDParam(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking id"})
	}
	booking, err := h.bookings.GetBooking(c.Context(), id)
	if err != nil {
		return respondError(c, h.reporter, "http.admin.bookings.get", err)
	}
	return c.JSON(fiber.Map{"booking": booking})
}

func (h *BookingHandler) UpdateStatus(c *fiber.Ctx) error {
	id, ok := parseIDParam(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking id"})
	}
	var req updateBookingStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	booking, err := h.bookings.UpdateStatus(c.Context(), id, req.Status)
	if err != nil {
		return respondError(c, h.reporter, "http.admin.bookings.status", err)
	}
	return c.JSON(fiber.Map{"booking": booking})
}

func (h *BookingHandler) DeleteBooking(c *fiber.Ctx) error {
	id, ok := parseIDParam(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking id"})
	}
	if err := h.bookings.DeleteBooking(c.Context(), id); err != nil {
		return respondError(c, h.reporter, "http.admin.bookings.delete", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *BookingHandler) RefundBooking(c *fiber.Ctx) error {
	id, ok := parseIDParam(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking id"})
	}
	booking, err := h.payments.Refund(c.Context(), id)
	if err != nil {
		return respondError(c, h.reporter, "http.admin.bookings.refund", err)
	}
	return c.JSON(fiber.Map{"booking": booking})
}

// SyncCalendar pushes a confirmed booking to the connected calendars again,
// for bookings whose automatic sync failed.
func (h *BookingHandler) SyncCalendar(c *fiber.Ctx) error {
	id, ok := parseIDParam(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking id"})
	}
	if h.calendar == nil || !h.calendar.Enabled() {
		return respondError(c, h.reporter, "http.admin.bookings.calendar", services.ErrCalendarUnavailable)
	}

	detail, err := h.bookings.GetBooking(c.Context(), id)
	if err != nil {
		return respondError(c, h.reporter, "http.admin.bookings.calendar", err)
	}
	if detail.Status != models.BookingStatusConfirmed {
		return respondError(c, h.reporter, "http.admin.bookings.calendar", services.ErrInvalidStateTransition)
	}
	if err := h.calendar.SyncBooking(c.Context(), &detail.Booking, detail.ConsultationType); err != nil {
		return respondError(c, h.reporter, "http.admin.bookings.calendar", err)
	}
	return c.JSON(fiber.Map{"booking": detail})
}
