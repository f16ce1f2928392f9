package handler

import (
	"io"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-booking-api/internal/service"
	"github.com/noah-isme/tutor-booking-api/pkg/response"
)

// ExportHandler exposes ledger export and signed download endpoints.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs handler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// ExportLedger godoc
// @Summary Export credit ledger entries as CSV
// @Tags Credits
// @Produce json
// @Param studentId query string true "Student ID"
// @Param courseId query string true "Course ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /credits/ledger/export [post]
func (h *ExportHandler) ExportLedger(c *gin.Context) {
	result, err := h.exports.ExportLedger(c.Request.Context(), c.Query("studentId"), c.Query("courseId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Download godoc
// @Summary Download an export artifact via signed token
// @Tags Credits
// @Produce text/csv
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Router /downloads/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	file, err := h.exports.OpenDownload(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename="+filepath.Base(file.Name()))
	if _, err := io.Copy(c.Writer, file); err != nil {
		c.Abort()
	}
}
