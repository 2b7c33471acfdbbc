package handlers

import (
	"net/http"

	"github.com/classchain/classchain/internal/services/export"
	"github.com/gin-gonic/gin"
)

type ExportHandler struct {
	exporter *export.Exporter
}

func NewExportHandler(exporter *export.Exporter) *ExportHandler {
	return &ExportHandler{exporter: exporter}
}

// ExportRecords streams the admin's attendance records as CSV. Once the
// first chunk is flushed the status line is out, so a mid-stream read error
// can only truncate the body.
func (h *ExportHandler) ExportRecords(c *gin.Context) {
	admin, ok := adminID(c)
	if !ok {
		return
	}

	filter := recordFilterFromQuery(c)

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="attendance_records.csv"`)
	c.Status(http.StatusOK)

	if err := h.exporter.Stream(c.Request.Context(), c.Writer, admin, filter); err != nil {
		c.Abort()
		return
	}
}
