package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/northstar-audit/northstar-backend/internal/logger"
	apperrors "github.com/northstar-audit/northstar-backend/internal/pkg/errors"
	"github.com/northstar-audit/northstar-backend/internal/services"
)

type FilesHandler struct {
	log   *logger.Logger
	store services.ReportStore
}

func NewFilesHandler(baseLog *logger.Logger, store services.ReportStore) *FilesHandler {
	return &FilesHandler{
		log:   baseLog.With("handler", "FilesHandler"),
		store: store,
	}
}

// GetFile handles GET /api/files/:filename, serving generated report
// PDFs.
func (fh *FilesHandler) GetFile(c *gin.Context) {
	filename := c.Param("filename")
	data, err := fh.store.Open(filename)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrInvalidArgument):
			detail(c, http.StatusBadRequest, "Invalid filename")
		case errors.Is(err, apperrors.ErrNotFound):
			detail(c, http.StatusNotFound, "File not found")
		default:
			fh.log.Error("Serving report failed", "error", err, "filename", filename)
			detail(c, http.StatusInternalServerError, "Failed to serve file")
		}
		return
	}
	c.Header("Content-Disposition", `inline; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", data)
}
