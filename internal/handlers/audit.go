package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/northstar-audit/northstar-backend/internal/contract"
	"github.com/northstar-audit/northstar-backend/internal/logger"
	apperrors "github.com/northstar-audit/northstar-backend/internal/pkg/errors"
	"github.com/northstar-audit/northstar-backend/internal/repos"
	"github.com/northstar-audit/northstar-backend/internal/services"
)

// MaxUploadBytes caps the accepted document size at 50MB.
const MaxUploadBytes = 50 << 20

type AuditHandler struct {
	log      *logger.Logger
	pipeline services.PipelineService
	audits   repos.AuditRepo
}

func NewAuditHandler(baseLog *logger.Logger, pipeline services.PipelineService, audits repos.AuditRepo) *AuditHandler {
	return &AuditHandler{
		log:      baseLog.With("handler", "AuditHandler"),
		pipeline: pipeline,
		audits:   audits,
	}
}

// RunAudit handles POST /api/run-audit. It accepts a multipart form
// with a PDF file, a document_type, and a user_id, runs the audit
// pipeline synchronously, and returns the completed audit record.
func (ah *AuditHandler) RunAudit(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadBytes)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			detail(c, http.StatusBadRequest, "File exceeds 50MB limit")
			return
		}
		detail(c, http.StatusBadRequest, "Missing file field")
		return
	}
	if !strings.HasSuffix(fileHeader.Filename, ".pdf") {
		detail(c, http.StatusBadRequest, "File must be a PDF")
		return
	}
	if fileHeader.Size > MaxUploadBytes {
		detail(c, http.StatusBadRequest, "File exceeds 50MB limit")
		return
	}

	documentType, ok := contract.NormalizeDocumentType(c.PostForm("document_type"))
	if !ok {
		quoted := make([]string, len(contract.DocumentTypes))
		for i, dt := range contract.DocumentTypes {
			quoted[i] = fmt.Sprintf("'%s'", dt)
		}
		detail(c, http.StatusBadRequest, "Invalid document_type. Expected one of: "+strings.Join(quoted, ", "))
		return
	}

	userID := c.PostForm("user_id")
	if userID == "" {
		detail(c, http.StatusBadRequest, "Missing user_id field")
		return
	}
	source := c.PostForm("source")
	if source != "discord" {
		source = "web"
	}

	f, err := fileHeader.Open()
	if err != nil {
		detail(c, http.StatusBadRequest, "Unreadable file upload")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		detail(c, http.StatusBadRequest, "Unreadable file upload")
		return
	}

	record, err := ah.pipeline.Run(c.Request.Context(), services.RunInput{
		Data:         data,
		DocumentName: fileHeader.Filename,
		DocumentType: documentType,
		UserID:       userID,
		Source:       source,
	})
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrInvalidArgument):
			detailCode(c, http.StatusBadRequest, CodePDFExtractionFailed, "PDF extraction failed: "+err.Error())
		case errors.Is(err, apperrors.ErrRecordInvalid):
			detailCode(c, http.StatusUnprocessableEntity, CodeValidationError, err.Error())
		default:
			ah.log.Error("Audit pipeline failed", "error", err, "document_name", fileHeader.Filename)
			detail(c, http.StatusInternalServerError, "Audit processing failed")
		}
		return
	}

	c.JSON(http.StatusOK, record)
}

// GetAudit handles GET /api/audit/:audit_id.
func (ah *AuditHandler) GetAudit(c *gin.Context) {
	auditID := c.Param("audit_id")
	record, err := ah.audits.GetByAuditID(c.Request.Context(), nil, auditID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			detail(c, http.StatusNotFound, "Audit not found")
			return
		}
		ah.log.Error("Fetching audit failed", "error", err, "audit_id", auditID)
		detail(c, http.StatusInternalServerError, "Failed to fetch audit")
		return
	}
	c.JSON(http.StatusOK, record)
}
