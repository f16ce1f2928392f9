package models

import "time"

// CreditAccount is the (total, used) counter pair for a student and course.
// Both counters only increase; credits never expire and are never refunded.
type CreditAccount struct {
	StudentID string    `db:"student_id" json:"student_id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	Total     int       `db:"total" json:"total"`
	Used      int       `db:"used" json:"used"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Balance returns the remaining credits, clamped at zero.
func (a CreditAccount) Balance() int {
	if a.Total <= a.Used {
		return 0
	}
	return a.Total - a.Used
}

// LedgerKind tags a ledger entry as a grant or a spend.
type LedgerKind string

const (
	LedgerAdd   LedgerKind = "add"
	LedgerSpend LedgerKind = "spend"
)

// LedgerEntry is one immutable row of the credit history. Entries are
// insert-only; nothing in the service updates or deletes them.
type LedgerEntry struct {
	ID        string     `db:"id" json:"id"`
	StudentID string     `db:"student_id" json:"student_id"`
	CourseID  string     `db:"course_id" json:"course_id"`
	Kind      LedgerKind `db:"kind" json:"kind"`
	Qty       int        `db:"qty" json:"qty"`
	Reason    string     `db:"reason" json:"reason"`
	ActorID   string     `db:"actor_id" json:"actor_id"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// SpendOutcome is the tri-state result of a spend attempt. Conflicting and
// insufficient outcomes are expected results, not errors.
type SpendOutcome string

const (
	SpendOutcomeSpent        SpendOutcome = "spent"
	SpendOutcomeAlreadySpent SpendOutcome = "already_spent"
	SpendOutcomeInsufficient SpendOutcome = "insufficient_balance"
)

// SpendResult reports what a spend call did and the resulting counters.
type SpendResult struct {
	Outcome SpendOutcome `json:"outcome"`
	Used    int          `json:"used"`
	Balance int          `json:"balance"`
}

// SpendLock is the idempotency marker created at most once per
// (student, course, key). Its presence means the guarded spend already
// ran for that student. The key alone is not unique: two students in one
// course can legitimately share a key such as "lesson:42" for a group
// lesson, and each must still be charged once.
type SpendLock struct {
	CourseID  string    `db:"course_id" json:"course_id"`
	IdemKey   string    `db:"idem_key" json:"idem_key"`
	StudentID string    `db:"student_id" json:"student_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
