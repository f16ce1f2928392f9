package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-booking-api/internal/models"
	appErrors "github.com/noah-isme/tutor-booking-api/pkg/errors"
	"github.com/noah-isme/tutor-booking-api/pkg/response"
)

type availabilityService interface {
	Get(ctx context.Context, teacherID string) (*models.Availability, error)
	Set(ctx context.Context, teacherID string, raw models.RawWeek, actorID string, isAdmin bool) (*models.Availability, error)
}

type slotProvider interface {
	TeacherLocation(ctx context.Context, teacherID string) (*time.Location, string, error)
	GenerateSlots(ctx context.Context, teacherID string, date time.Time, durationMinutes int, includePastToday bool) ([]string, error)
	GenerateSlotsRange(ctx context.Context, teacherID string, from time.Time, days, durationMinutes int, viewerTZ string) ([]models.DaySlots, error)
}

// AvailabilityHandler exposes weekly availability and slot discovery endpoints.
type AvailabilityHandler struct {
	availability availabilityService
	slots        slotProvider
}

// NewAvailabilityHandler constructs handler.
func NewAvailabilityHandler(availability availabilityService, slots slotProvider) *AvailabilityHandler {
	return &AvailabilityHandler{availability: availability, slots: slots}
}

// Get godoc
// @Summary Get a teacher's weekly availability
// @Tags Availability
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/availability [get]
func (h *AvailabilityHandler) Get(c *gin.Context) {
	availability, err := h.availability.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, availability, nil)
}

// Set godoc
// @Summary Replace a teacher's weekly availability
// @Tags Availability
// @Accept json
// @Produce json
// @Param id path string true "Teacher ID"
// @Param payload body models.RawWeek true "Weekly ranges keyed by day (mon..sun)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /teachers/{id}/availability [put]
func (h *AvailabilityHandler) Set(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var raw models.RawWeek
	if err := c.ShouldBindJSON(&raw); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	availability, err := h.availability.Set(c.Request.Context(), c.Param("id"), raw, claims.UserID, claims.IsAdmin())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, availability, nil)
}

// Slots godoc
// @Summary List free start times for one day
// @Tags Slots
// @Produce json
// @Param id path string true "Teacher ID"
// @Param date query string true "Date in the teacher's timezone (YYYY-MM-DD)"
// @Param duration query int false "Lesson duration in minutes"
// @Param includePast query bool false "Keep today's already-elapsed start times"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/slots [get]
func (h *AvailabilityHandler) Slots(c *gin.Context) {
	teacherID := c.Param("id")
	loc, tzName, err := h.slots.TeacherLocation(c.Request.Context(), teacherID)
	if err != nil {
		response.Error(c, err)
		return
	}
	date, err := time.ParseInLocation("2006-01-02", c.Query("date"), loc)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD"))
		return
	}
	duration, _ := strconv.Atoi(c.DefaultQuery("duration", "0"))
	includePast := c.Query("includePast") == "true"

	times, err := h.slots.GenerateSlots(c.Request.Context(), teacherID, date, duration, includePast)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"teacher_id": teacherID,
		"date":       date.Format("2006-01-02"),
		"timezone":   tzName,
		"times":      times,
	}, nil)
}

// SlotsRange godoc
// @Summary List free start times over a run of days
// @Tags Slots
// @Produce json
// @Param id path string true "Teacher ID"
// @Param from query string true "First date in the teacher's timezone (YYYY-MM-DD)"
// @Param days query int false "Number of days, default 7"
// @Param duration query int false "Lesson duration in minutes"
// @Param tz query string false "Viewer timezone for projected display times"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/slots/range [get]
func (h *AvailabilityHandler) SlotsRange(c *gin.Context) {
	teacherID := c.Param("id")
	loc, tzName, err := h.slots.TeacherLocation(c.Request.Context(), teacherID)
	if err != nil {
		response.Error(c, err)
		return
	}
	from, err := time.ParseInLocation("2006-01-02", c.Query("from"), loc)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be YYYY-MM-DD"))
		return
	}
	days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))
	duration, _ := strconv.Atoi(c.DefaultQuery("duration", "0"))

	daySlots, err := h.slots.GenerateSlotsRange(c.Request.Context(), teacherID, from, days, duration, c.Query("tz"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"teacher_id": teacherID,
		"timezone":   tzName,
		"days":       daySlots,
	}, nil)
}
