package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-booking-api/internal/models"
	"github.com/noah-isme/tutor-booking-api/pkg/storage"
)

type ledgerListerStub struct {
	entries []models.LedgerEntry
}

func (s ledgerListerStub) ListLedger(ctx context.Context, studentID, courseID string, page, pageSize int) ([]models.LedgerEntry, int, error) {
	start := (page - 1) * pageSize
	if start >= len(s.entries) {
		return nil, len(s.entries), nil
	}
	end := start + pageSize
	if end > len(s.entries) {
		end = len(s.entries)
	}
	return s.entries[start:end], len(s.entries), nil
}

func newTestExportService(t *testing.T, entries []models.LedgerEntry) *ExportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	return NewExportService(ledgerListerStub{entries: entries}, store, signer, nil)
}

func TestExportLedgerRoundTrip(t *testing.T) {
	entries := []models.LedgerEntry{
		{Kind: models.LedgerAdd, Qty: 10, Reason: "order:123", ActorID: "admin-1", CreatedAt: time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)},
		{Kind: models.LedgerSpend, Qty: 1, Reason: "lesson:l-1", ActorID: "t-1", CreatedAt: time.Date(2025, 9, 2, 8, 0, 0, 0, time.UTC)},
	}
	svc := newTestExportService(t, entries)

	result, err := svc.ExportLedger(context.Background(), "s-1", "c-1")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Rows)
	require.True(t, strings.HasPrefix(result.DownloadURL, "/downloads/"))

	token := strings.TrimPrefix(result.DownloadURL, "/downloads/")
	file, err := svc.OpenDownload(token)
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck

	data, err := io.ReadAll(file)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "created_at,kind,qty,reason,actor_id", lines[0])
	assert.Contains(t, lines[1], "add,10,order:123,admin-1")
	assert.Contains(t, lines[2], "spend,1,lesson:l-1,t-1")
}

func TestExportLedgerRequiresIdentifiers(t *testing.T) {
	svc := newTestExportService(t, nil)

	_, err := svc.ExportLedger(context.Background(), "", "c-1")
	require.Error(t, err)
	_, err = svc.ExportLedger(context.Background(), "s-1", "")
	require.Error(t, err)
}

func TestOpenDownloadRejectsForgedToken(t *testing.T) {
	svc := newTestExportService(t, nil)

	_, err := svc.OpenDownload("not-a-token")
	require.Error(t, err)
}
