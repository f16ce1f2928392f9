package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-booking-api/internal/models"
	"github.com/noah-isme/tutor-booking-api/internal/service"
	appErrors "github.com/noah-isme/tutor-booking-api/pkg/errors"
	"github.com/noah-isme/tutor-booking-api/pkg/response"
)

type bookingService interface {
	Reserve(ctx context.Context, studentID string, req service.ReserveRequest) (*models.Booking, error)
	Reschedule(ctx context.Context, bookingID, actorID string, isAdmin bool, req service.RescheduleRequest) (*models.Booking, error)
	NextOccurrence(ctx context.Context, bookingID string) (*models.NextOccurrence, error)
}

// BookingHandler exposes booking endpoints.
type BookingHandler struct {
	bookings bookingService
}

// NewBookingHandler constructs handler.
func NewBookingHandler(bookings bookingService) *BookingHandler {
	return &BookingHandler{bookings: bookings}
}

// Reserve godoc
// @Summary Reserve a lesson slot
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body service.ReserveRequest true "Reservation payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Slot already taken"
// @Security BearerAuth
// @Router /bookings [post]
func (h *BookingHandler) Reserve(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	booking, err := h.bookings.Reserve(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, booking)
}

// Reschedule godoc
// @Summary Move an existing booking to a new time
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param payload body service.RescheduleRequest true "New timing payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope "New slot already taken"
// @Security BearerAuth
// @Router /bookings/{id}/reschedule [put]
func (h *BookingHandler) Reschedule(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	booking, err := h.bookings.Reschedule(c.Request.Context(), c.Param("id"), claims.UserID, claims.IsAdmin(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

// NextOccurrence godoc
// @Summary Resolve the next occurrence of a booking in the teacher's timezone
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /bookings/{id}/next-occurrence [get]
func (h *BookingHandler) NextOccurrence(c *gin.Context) {
	next, err := h.bookings.NextOccurrence(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, next, nil)
}
