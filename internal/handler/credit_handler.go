package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-booking-api/internal/models"
	"github.com/noah-isme/tutor-booking-api/internal/service"
	appErrors "github.com/noah-isme/tutor-booking-api/pkg/errors"
	"github.com/noah-isme/tutor-booking-api/pkg/response"
)

type creditService interface {
	Grant(ctx context.Context, req service.GrantRequest, actorID string) (int, error)
	Spend(ctx context.Context, req service.SpendRequest, actorID string, isAdmin bool) (*models.SpendResult, error)
	Balance(ctx context.Context, studentID, courseID string) (*service.BalanceSummary, error)
	Ledger(ctx context.Context, studentID, courseID string, page, pageSize int) ([]models.LedgerEntry, *models.Pagination, error)
}

// CreditHandler exposes credit ledger endpoints.
type CreditHandler struct {
	credits creditService
}

// NewCreditHandler constructs handler.
func NewCreditHandler(credits creditService) *CreditHandler {
	return &CreditHandler{credits: credits}
}

// Grant godoc
// @Summary Grant credits to a student for a course
// @Tags Credits
// @Accept json
// @Produce json
// @Param payload body service.GrantRequest true "Grant payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /credits/grant [post]
func (h *CreditHandler) Grant(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	total, err := h.credits.Grant(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"student_id": req.StudentID,
		"course_id":  req.CourseID,
		"total":      total,
	}, nil)
}

// Spend godoc
// @Summary Spend credits, idempotent per key
// @Tags Credits
// @Accept json
// @Produce json
// @Param payload body service.SpendRequest true "Spend payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope "Key already spent"
// @Failure 422 {object} response.Envelope "Insufficient balance"
// @Security BearerAuth
// @Router /credits/spend [post]
func (h *CreditHandler) Spend(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.SpendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.credits.Spend(c.Request.Context(), req, claims.UserID, claims.IsAdmin())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Balance godoc
// @Summary Read a student's credit balance for a course
// @Tags Credits
// @Produce json
// @Param studentId query string true "Student ID"
// @Param courseId query string true "Course ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /credits/balance [get]
func (h *CreditHandler) Balance(c *gin.Context) {
	studentID := c.Query("studentId")
	courseID := c.Query("courseId")
	if studentID == "" || courseID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "studentId and courseId are required"))
		return
	}
	summary, err := h.credits.Balance(c.Request.Context(), studentID, courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Ledger godoc
// @Summary List credit ledger entries for a student and course
// @Tags Credits
// @Produce json
// @Param studentId query string true "Student ID"
// @Param courseId query string true "Course ID"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /credits/ledger [get]
func (h *CreditHandler) Ledger(c *gin.Context) {
	studentID := c.Query("studentId")
	courseID := c.Query("courseId")
	if studentID == "" || courseID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "studentId and courseId are required"))
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	entries, pagination, err := h.credits.Ledger(c.Request.Context(), studentID, courseID, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, pagination)
}
