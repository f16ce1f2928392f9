package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutor-booking-api/internal/models"
)

// CreditRepository persists credit accounts, the append-only ledger and
// spend locks. The lock insert uses ON CONFLICT DO NOTHING as the atomic
// create-if-absent primitive the idempotent spend relies on.
type CreditRepository struct {
	db *sqlx.DB
}

// NewCreditRepository constructs the repository.
func NewCreditRepository(db *sqlx.DB) *CreditRepository {
	return &CreditRepository{db: db}
}

// GetAccount loads the counter pair for a student and course. A student who
// was never granted credits gets a zero account, not an error.
func (r *CreditRepository) GetAccount(ctx context.Context, studentID, courseID string) (*models.CreditAccount, error) {
	const query = `SELECT student_id, course_id, total, used, updated_at FROM credit_accounts WHERE student_id = $1 AND course_id = $2`
	var account models.CreditAccount
	if err := r.db.GetContext(ctx, &account, query, studentID, courseID); err != nil {
		if err == sql.ErrNoRows {
			return &models.CreditAccount{StudentID: studentID, CourseID: courseID}, nil
		}
		return nil, fmt.Errorf("get credit account: %w", err)
	}
	return &account, nil
}

// Grant atomically increments total and appends an "add" ledger entry,
// returning the new total. The increment happens in SQL, never as an
// application-level read-modify-write.
func (r *CreditRepository) Grant(ctx context.Context, studentID, courseID string, qty int, reason, actorID string) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin grant tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const upsert = `INSERT INTO credit_accounts (student_id, course_id, total, used, updated_at)
VALUES ($1, $2, $3, 0, $4)
ON CONFLICT (student_id, course_id) DO UPDATE SET total = credit_accounts.total + $3, updated_at = $4
RETURNING total`
	var newTotal int
	if err = tx.GetContext(ctx, &newTotal, upsert, studentID, courseID, qty, time.Now().UTC()); err != nil {
		return 0, fmt.Errorf("increment total: %w", err)
	}

	if err = appendLedgerEntry(ctx, tx, models.LedgerEntry{
		StudentID: studentID,
		CourseID:  courseID,
		Kind:      models.LedgerAdd,
		Qty:       qty,
		Reason:    reason,
		ActorID:   actorID,
	}); err != nil {
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit grant tx: %w", err)
	}
	return newTotal, nil
}

// Spend performs the lock-first idempotent deduction in one transaction:
//
//  1. create the (student, course, key) spend lock; an existing lock means
//     the spend already ran, so the caller gets AlreadySpent without a
//     deduction;
//  2. read the counters with a row lock and reject on insufficient balance,
//     rolling the transaction (and with it the just-created lock) back;
//  3. otherwise increment used and append the "spend" ledger entry.
//
// An empty idemKey skips step 1, making the spend unconditional.
func (r *CreditRepository) Spend(ctx context.Context, studentID, courseID string, qty int, idemKey, reason, actorID string) (*models.SpendResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin spend tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if idemKey != "" {
		const lockInsert = `INSERT INTO spend_locks (course_id, idem_key, student_id, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (student_id, course_id, idem_key) DO NOTHING`
		res, err := tx.ExecContext(ctx, lockInsert, courseID, idemKey, studentID, time.Now().UTC())
		if err != nil {
			return nil, fmt.Errorf("acquire spend lock: %w", err)
		}
		inserted, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("spend lock result: %w", err)
		}
		if inserted == 0 {
			account, err := r.accountInTx(ctx, tx, studentID, courseID, false)
			if err != nil {
				return nil, err
			}
			if err := tx.Commit(); err != nil {
				return nil, fmt.Errorf("commit spend tx: %w", err)
			}
			committed = true
			return &models.SpendResult{Outcome: models.SpendOutcomeAlreadySpent, Used: account.Used, Balance: account.Balance()}, nil
		}
	}

	account, err := r.accountInTx(ctx, tx, studentID, courseID, true)
	if err != nil {
		return nil, err
	}
	if account.Balance() < qty {
		// Rolling back releases the lock created above, so a later
		// legitimate spend with the same key can still succeed.
		return &models.SpendResult{Outcome: models.SpendOutcomeInsufficient, Used: account.Used, Balance: account.Balance()}, nil
	}

	const deduct = `UPDATE credit_accounts SET used = used + $3, updated_at = $4 WHERE student_id = $1 AND course_id = $2 RETURNING used, total`
	var used, total int
	row := tx.QueryRowContext(ctx, deduct, studentID, courseID, qty, time.Now().UTC())
	if err := row.Scan(&used, &total); err != nil {
		return nil, fmt.Errorf("increment used: %w", err)
	}

	if err := appendLedgerEntry(ctx, tx, models.LedgerEntry{
		StudentID: studentID,
		CourseID:  courseID,
		Kind:      models.LedgerSpend,
		Qty:       qty,
		Reason:    reason,
		ActorID:   actorID,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit spend tx: %w", err)
	}
	committed = true

	balance := total - used
	if balance < 0 {
		balance = 0
	}
	return &models.SpendResult{Outcome: models.SpendOutcomeSpent, Used: used, Balance: balance}, nil
}

func (r *CreditRepository) accountInTx(ctx context.Context, tx *sqlx.Tx, studentID, courseID string, forUpdate bool) (*models.CreditAccount, error) {
	query := `SELECT student_id, course_id, total, used, updated_at FROM credit_accounts WHERE student_id = $1 AND course_id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var account models.CreditAccount
	if err := tx.GetContext(ctx, &account, query, studentID, courseID); err != nil {
		if err == sql.ErrNoRows {
			return &models.CreditAccount{StudentID: studentID, CourseID: courseID}, nil
		}
		return nil, fmt.Errorf("read credit account: %w", err)
	}
	return &account, nil
}

func appendLedgerEntry(ctx context.Context, tx *sqlx.Tx, entry models.LedgerEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO credit_ledger (id, student_id, course_id, kind, qty, reason, actor_id, created_at)
VALUES (:id, :student_id, :course_id, :kind, :qty, :reason, :actor_id, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, &entry); err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

// ListLedger returns the immutable credit history for a student and course,
// newest first.
func (r *CreditRepository) ListLedger(ctx context.Context, studentID, courseID string, page, pageSize int) ([]models.LedgerEntry, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	query := fmt.Sprintf(`SELECT id, student_id, course_id, kind, qty, reason, actor_id, created_at FROM credit_ledger
WHERE student_id = $1 AND course_id = $2 ORDER BY created_at DESC LIMIT %d OFFSET %d`, pageSize, offset)
	var entries []models.LedgerEntry
	if err := r.db.SelectContext(ctx, &entries, query, studentID, courseID); err != nil {
		return nil, 0, fmt.Errorf("list ledger: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM credit_ledger WHERE student_id = $1 AND course_id = $2`, studentID, courseID); err != nil {
		return nil, 0, fmt.Errorf("count ledger: %w", err)
	}
	return entries, total, nil
}
