package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-booking-api/internal/middleware"
	"github.com/noah-isme/tutor-booking-api/internal/models"
	"github.com/noah-isme/tutor-booking-api/internal/service"
)

type creditServiceMock struct {
	grantTotal   int
	grantErr     error
	spendResp    *models.SpendResult
	spendErr     error
	balanceResp  *service.BalanceSummary
	balanceErr   error
	ledgerResp   []models.LedgerEntry
	ledgerPages  *models.Pagination
	ledgerErr    error
	lastActorID  string
	lastAdmin    bool
	lastSpend    service.SpendRequest
	lastPage     int
	lastPageSize int
	grantCalled  bool
	ledgerCalled bool
}

func (m *creditServiceMock) Grant(ctx context.Context, req service.GrantRequest, actorID string) (int, error) {
	m.grantCalled = true
	m.lastActorID = actorID
	return m.grantTotal, m.grantErr
}

func (m *creditServiceMock) Spend(ctx context.Context, req service.SpendRequest, actorID string, isAdmin bool) (*models.SpendResult, error) {
	m.lastSpend = req
	m.lastActorID = actorID
	m.lastAdmin = isAdmin
	return m.spendResp, m.spendErr
}

func (m *creditServiceMock) Balance(ctx context.Context, studentID, courseID string) (*service.BalanceSummary, error) {
	return m.balanceResp, m.balanceErr
}

func (m *creditServiceMock) Ledger(ctx context.Context, studentID, courseID string, page, pageSize int) ([]models.LedgerEntry, *models.Pagination, error) {
	m.ledgerCalled = true
	m.lastPage = page
	m.lastPageSize = pageSize
	return m.ledgerResp, m.ledgerPages, m.ledgerErr
}

func TestCreditHandlerGrant(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &creditServiceMock{grantTotal: 12}
	handler := NewCreditHandler(mockSvc)

	payload, _ := json.Marshal(service.GrantRequest{StudentID: "student-1", CourseID: "course-1", Qty: 10, Reason: "purchase"})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/credits/grant", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	handler.Grant(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.grantCalled)
	assert.Equal(t, "admin-1", mockSvc.lastActorID)

	var body struct {
		Data struct {
			StudentID string `json:"student_id"`
			Total     int    `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "student-1", body.Data.StudentID)
	assert.Equal(t, 12, body.Data.Total)
}

func TestCreditHandlerGrantUnauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &creditServiceMock{}
	handler := NewCreditHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/credits/grant", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Grant(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, mockSvc.grantCalled)
}

func TestCreditHandlerSpendPassesActor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &creditServiceMock{spendResp: &models.SpendResult{Outcome: models.SpendOutcomeSpent, Used: 1, Balance: 9}}
	handler := NewCreditHandler(mockSvc)

	payload, _ := json.Marshal(service.SpendRequest{StudentID: "student-1", CourseID: "course-1", Qty: 1, IdempotencyKey: "lesson:42"})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/credits/spend", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	handler.Spend(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "lesson:42", mockSvc.lastSpend.IdempotencyKey)
	assert.Equal(t, "student-1", mockSvc.lastActorID)
	assert.False(t, mockSvc.lastAdmin)
}

func TestCreditHandlerSpendInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewCreditHandler(&creditServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/credits/spend", bytes.NewBufferString(`{"qty":`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	handler.Spend(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreditHandlerBalanceRequiresIdentifiers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewCreditHandler(&creditServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/credits/balance?studentId=student-1", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	handler.Balance(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreditHandlerBalance(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &creditServiceMock{balanceResp: &service.BalanceSummary{StudentID: "student-1", CourseID: "course-1", Total: 10, Used: 3, Balance: 7}}
	handler := NewCreditHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/credits/balance?studentId=student-1&courseId=course-1", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	handler.Balance(c)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data service.BalanceSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 7, body.Data.Balance)
}

func TestCreditHandlerLedgerDefaultsPagination(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &creditServiceMock{
		ledgerResp:  []models.LedgerEntry{},
		ledgerPages: &models.Pagination{Page: 1, PageSize: 20, TotalCount: 0},
	}
	handler := NewCreditHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/credits/ledger?studentId=student-1&courseId=course-1", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	handler.Ledger(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.ledgerCalled)
	assert.Equal(t, 1, mockSvc.lastPage)
	assert.Equal(t, 20, mockSvc.lastPageSize)
}
