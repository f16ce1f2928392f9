package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-booking-api/internal/models"
	"github.com/noah-isme/tutor-booking-api/internal/platform"
	appErrors "github.com/noah-isme/tutor-booking-api/pkg/errors"
)

type creditRepository interface {
	GetAccount(ctx context.Context, studentID, courseID string) (*models.CreditAccount, error)
	Grant(ctx context.Context, studentID, courseID string, qty int, reason, actorID string) (int, error)
	Spend(ctx context.Context, studentID, courseID string, qty int, idemKey, reason, actorID string) (*models.SpendResult, error)
	ListLedger(ctx context.Context, studentID, courseID string, page, pageSize int) ([]models.LedgerEntry, int, error)
}

// GrantRequest credits a student with lessons, normally driven by the
// commerce system once per paid line item.
type GrantRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	CourseID  string `json:"course_id" validate:"required"`
	Qty       int    `json:"qty" validate:"required"`
	Reason    string `json:"reason"`
}

// SpendRequest deducts credits, normally driven by the LMS per completed
// lesson with key "lesson:<lessonId>".
type SpendRequest struct {
	StudentID      string `json:"student_id" validate:"required"`
	CourseID       string `json:"course_id" validate:"required"`
	Qty            int    `json:"qty" validate:"required"`
	IdempotencyKey string `json:"idempotency_key"`
}

// BalanceSummary is the read view of a credit account.
type BalanceSummary struct {
	StudentID string `json:"student_id"`
	CourseID  string `json:"course_id"`
	Total     int    `json:"total"`
	Used      int    `json:"used"`
	Balance   int    `json:"balance"`
}

// CreditService is the credit ledger: strictly additive grants, idempotent
// spends, clamped balance reads. Grant is not idempotent by itself; callers
// reacting to external events gate it with their own one-time flag.
type CreditService struct {
	repo      creditRepository
	directory platform.Directory
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCreditService constructs CreditService.
func NewCreditService(repo creditRepository, directory platform.Directory, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *CreditService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CreditService{repo: repo, directory: directory, metrics: metrics, validator: validate, logger: logger}
}

// Grant increments the student's total and appends an "add" ledger entry,
// returning the new total.
func (s *CreditService) Grant(ctx context.Context, req GrantRequest, actorID string) (int, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grant payload")
	}
	if req.Qty <= 0 {
		return 0, appErrors.Clone(appErrors.ErrInvalidQuantity, "grant quantity must be positive")
	}

	newTotal, err := s.repo.Grant(ctx, req.StudentID, req.CourseID, req.Qty, req.Reason, actorID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to grant credits")
	}
	s.logger.Info("credits granted",
		zap.String("student_id", req.StudentID),
		zap.String("course_id", req.CourseID),
		zap.Int("qty", req.Qty),
		zap.Int("new_total", newTotal),
		zap.String("actor_id", actorID))
	return newTotal, nil
}

// Spend deducts credits at most once per idempotency key. A repeated key
// reports AlreadySpent, which callers treat as success; insufficient
// balance leaves no lock behind so a later grant+spend with the same key
// can still succeed. Teachers may only spend for courses they instruct.
func (s *CreditService) Spend(ctx context.Context, req SpendRequest, actorID string, isAdmin bool) (*models.SpendResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid spend payload")
	}
	if req.Qty <= 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidQuantity, "spend quantity must be positive")
	}

	if !isAdmin {
		instructor, err := s.directory.IsInstructor(ctx, actorID, req.CourseID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "instructor status could not be verified")
		}
		if !instructor {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only the course instructor may record lesson completion")
		}
	}

	result, err := s.repo.Spend(ctx, req.StudentID, req.CourseID, req.Qty, req.IdempotencyKey, req.IdempotencyKey, actorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to spend credits")
	}
	s.metrics.RecordSpend(string(result.Outcome))
	s.logger.Info("credits spend attempted",
		zap.String("student_id", req.StudentID),
		zap.String("course_id", req.CourseID),
		zap.String("outcome", string(result.Outcome)),
		zap.String("idempotency_key", req.IdempotencyKey),
		zap.String("actor_id", actorID))
	return result, nil
}

// Balance returns the account summary; counters that drifted inconsistent
// still never produce a negative balance.
func (s *CreditService) Balance(ctx context.Context, studentID, courseID string) (*BalanceSummary, error) {
	account, err := s.repo.GetAccount(ctx, studentID, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load credit account")
	}
	return &BalanceSummary{
		StudentID: account.StudentID,
		CourseID:  account.CourseID,
		Total:     account.Total,
		Used:      account.Used,
		Balance:   account.Balance(),
	}, nil
}

// Ledger returns the immutable credit history with pagination metadata.
func (s *CreditService) Ledger(ctx context.Context, studentID, courseID string, page, pageSize int) ([]models.LedgerEntry, *models.Pagination, error) {
	entries, total, err := s.repo.ListLedger(ctx, studentID, courseID, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list ledger")
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	return entries, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}
