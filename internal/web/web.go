// Package web is the browser-facing client. It renders server-side
// HTML and talks to the audit backend through the shared apiclient,
// identifying visitors with a session cookie.
package web

import (
	"embed"
	"errors"
	"html/template"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/northstar-audit/northstar-backend/internal/apiclient"
	"github.com/northstar-audit/northstar-backend/internal/contract"
	"github.com/northstar-audit/northstar-backend/internal/logger"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const (
	userCookie    = "northstar_uid"
	cookieMaxAge  = 365 * 24 * 60 * 60
	maxUploadSize = 50 << 20
)

type Handler struct {
	log *logger.Logger
	api *apiclient.Client
}

func NewHandler(baseLog *logger.Logger, api *apiclient.Client) *Handler {
	return &Handler{
		log: baseLog.With("component", "web"),
		api: api,
	}
}

func NewRouter(baseLog *logger.Logger, api *apiclient.Client) (*gin.Engine, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, err
	}

	h := NewHandler(baseLog, api)
	router := gin.New()
	router.Use(gin.Recovery())
	router.SetHTMLTemplate(tmpl)

	router.GET("/", h.Index)
	router.POST("/audit", h.SubmitAudit)
	router.GET("/audit/:audit_id", h.AuditDetail)
	router.GET("/history", h.History)
	router.GET("/reports/:filename", h.Report)
	return router, nil
}

// userID returns the visitor's session identity, minting a cookie on
// first visit.
func (h *Handler) userID(c *gin.Context) string {
	if id, err := c.Cookie(userCookie); err == nil && strings.HasPrefix(id, "web_") {
		return id
	}
	id := "web_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
	c.SetCookie(userCookie, id, cookieMaxAge, "/", "", false, true)
	return id
}

func (h *Handler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, "index", gin.H{
		"DocumentTypes": contract.DocumentTypes,
	})
}

func (h *Handler) SubmitAudit(c *gin.Context) {
	userID := h.userID(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.indexError(c, "Please choose a PDF file to upload.")
		return
	}
	if fileHeader.Size > maxUploadSize {
		h.indexError(c, "File must be under 50 MB.")
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		h.indexError(c, "Could not read the uploaded file.")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		h.indexError(c, "Could not read the uploaded file.")
		return
	}

	record, err := h.api.RunAudit(c.Request.Context(), userID, fileHeader.Filename, c.PostForm("document_type"), data)
	if err != nil {
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) && apiErr.Kind == apiclient.KindInvalidInput {
			h.indexError(c, apiErr.Message)
			return
		}
		h.log.Error("Audit submission failed", "error", err)
		h.errorPage(c, http.StatusBadGateway, "The audit service is unavailable right now. Please try again.")
		return
	}

	h.renderRecord(c, record)
}

func (h *Handler) AuditDetail(c *gin.Context) {
	record, err := h.api.GetAuditDetail(c.Request.Context(), c.Param("audit_id"))
	if err != nil {
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) && apiErr.Kind == apiclient.KindNotFound {
			h.errorPage(c, http.StatusNotFound, "No audit found with that ID.")
			return
		}
		h.log.Error("Audit detail fetch failed", "error", err)
		h.errorPage(c, http.StatusBadGateway, "Could not load the audit. Please try again.")
		return
	}
	h.renderRecord(c, record)
}

func (h *Handler) History(c *gin.Context) {
	history, err := h.api.GetHistory(c.Request.Context(), h.userID(c))
	if err != nil {
		h.log.Error("History fetch failed", "error", err)
		h.errorPage(c, http.StatusBadGateway, "Could not load your history. Please try again.")
		return
	}
	c.HTML(http.StatusOK, "history", gin.H{
		"Audits": history.Audits,
	})
}

// Report proxies the generated PDF from the backend so the browser
// never needs direct backend access.
func (h *Handler) Report(c *gin.Context) {
	filename := c.Param("filename")
	data, err := h.api.DownloadReport(c.Request.Context(), "/api/files/"+filename)
	if err != nil {
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) && apiErr.Kind == apiclient.KindNotFound {
			h.errorPage(c, http.StatusNotFound, "Report not found.")
			return
		}
		h.log.Error("Report download failed", "error", err, "filename", filename)
		h.errorPage(c, http.StatusBadGateway, "Could not download the report. Please try again.")
		return
	}
	c.Header("Content-Disposition", `inline; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", data)
}

func (h *Handler) renderRecord(c *gin.Context, record *contract.AuditRecord) {
	c.HTML(http.StatusOK, "result", gin.H{
		"Record":         record,
		"ReportFilename": path.Base(record.ReportPDFURL),
	})
}

func (h *Handler) indexError(c *gin.Context, message string) {
	c.HTML(http.StatusBadRequest, "index", gin.H{
		"DocumentTypes": contract.DocumentTypes,
		"Error":         message,
	})
}

func (h *Handler) errorPage(c *gin.Context, status int, message string) {
	c.HTML(status, "error", gin.H{
		"Message": message,
	})
}
