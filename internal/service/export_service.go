package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/tutor-booking-api/internal/models"
	appErrors "github.com/noah-isme/tutor-booking-api/pkg/errors"
	"github.com/noah-isme/tutor-booking-api/pkg/export"
	"github.com/noah-isme/tutor-booking-api/pkg/storage"
)

type ledgerLister interface {
	ListLedger(ctx context.Context, studentID, courseID string, page, pageSize int) ([]models.LedgerEntry, int, error)
}

// ExportResult points a caller at a finished export artifact.
type ExportResult struct {
	Filename    string    `json:"filename"`
	DownloadURL string    `json:"download_url"`
	ExpiresAt   time.Time `json:"expires_at"`
	Rows        int       `json:"rows"`
}

// ExportService renders credit ledger history to CSV files on local storage
// and hands out time-limited signed download links.
type ExportService struct {
	ledger  ledgerLister
	csv     *export.CSVExporter
	store   *storage.LocalStorage
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	nowFunc func() time.Time
}

// NewExportService constructs the export service.
func NewExportService(ledger ledgerLister, store *storage.LocalStorage, signer *storage.SignedURLSigner, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		ledger:  ledger,
		csv:     export.NewCSVExporter(),
		store:   store,
		signer:  signer,
		logger:  logger,
		nowFunc: time.Now,
	}
}

const ledgerExportPageSize = 100

// ExportLedger writes the full ledger for a student and course to a CSV
// artifact and returns a signed download token for it.
func (s *ExportService) ExportLedger(ctx context.Context, studentID, courseID string) (*ExportResult, error) {
	if studentID == "" || courseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "studentId and courseId are required")
	}

	table := export.Table{
		Headers: []string{"created_at", "kind", "qty", "reason", "actor_id"},
	}
	for page := 1; ; page++ {
		entries, total, err := s.ledger.ListLedger(ctx, studentID, courseID, page, ledgerExportPageSize)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			table.Rows = append(table.Rows, []string{
				entry.CreatedAt.UTC().Format(time.RFC3339),
				string(entry.Kind),
				strconv.Itoa(entry.Qty),
				entry.Reason,
				entry.ActorID,
			})
		}
		if len(entries) == 0 || len(table.Rows) >= total {
			break
		}
	}

	data, err := s.csv.Render(table)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "render ledger csv")
	}

	filename := fmt.Sprintf("ledger/%s_%s_%d.csv", studentID, courseID, s.nowFunc().UTC().Unix())
	if _, err := s.store.Save(filename, data); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "store ledger csv")
	}

	token, expiresAt, err := s.signer.Generate(filename)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "sign download link")
	}

	s.logger.Info("ledger exported",
		zap.String("student_id", studentID),
		zap.String("course_id", courseID),
		zap.Int("rows", len(table.Rows)))

	return &ExportResult{
		Filename:    filename,
		DownloadURL: "/downloads/" + token,
		ExpiresAt:   expiresAt,
		Rows:        len(table.Rows),
	}, nil
}

// OpenDownload validates a signed token and opens the artifact it references.
func (s *ExportService) OpenDownload(token string) (*os.File, error) {
	relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download link")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export no longer available")
	}
	return file, nil
}
