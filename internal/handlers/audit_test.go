package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/northstar-audit/northstar-backend/internal/contract"
	"github.com/northstar-audit/northstar-backend/internal/handlers"
	"github.com/northstar-audit/northstar-backend/internal/logger"
	"github.com/northstar-audit/northstar-backend/internal/repos"
	"github.com/northstar-audit/northstar-backend/internal/server"
	"github.com/northstar-audit/northstar-backend/internal/services"
	"github.com/northstar-audit/northstar-backend/internal/types"
)

type stubExtractor struct{}

func (stubExtractor) Extract(originalName string, data []byte) (*services.ExtractedDocument, error) {
	return &services.ExtractedDocument{
		FullText:  "Quarterly filing text.",
		Pages:     []services.ExtractedPage{{PageNum: 1, Text: "Quarterly filing text."}},
		PageCount: 1,
	}, nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("creating logger: %v", err)
	}

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&types.User{},
		&types.Audit{},
		&types.AuditGap{},
		&types.GapLocation{},
		&types.AuditRemediation{},
	); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	store, err := services.NewLocalReportStore(log, t.TempDir())
	if err != nil {
		t.Fatalf("creating report store: %v", err)
	}
	userRepo := repos.NewUserRepo(db, log)
	auditRepo := repos.NewAuditRepo(db, log)
	pipeline := services.NewPipelineService(
		log, db,
		stubExtractor{},
		services.NewResearchService(log),
		services.NewAnalyzerService(log, nil),
		services.NewReportService(log, nil),
		store, userRepo, auditRepo,
	)

	return server.NewRouter(server.RouterConfig{
		Log:            log,
		AuditHandler:   handlers.NewAuditHandler(log, pipeline, auditRepo),
		HistoryHandler: handlers.NewHistoryHandler(log, auditRepo),
		FilesHandler:   handlers.NewFilesHandler(log, store),
	})
}

func multipartUpload(t *testing.T, filename, documentType, userID string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("creating form file: %v", err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatalf("writing form file: %v", err)
	}
	if documentType != "" {
		w.WriteField("document_type", documentType)
	}
	if userID != "" {
		w.WriteField("user_id", userID)
	}
	w.Close()
	return &buf, w.FormDataContentType()
}

func runAudit(t *testing.T, router *gin.Engine, filename, documentType, userID string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartUpload(t, filename, documentType, userID, []byte("%PDF-1.4 stub"))
	req := httptest.NewRequest(http.MethodPost, "/api/run-audit", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRunAuditEndToEnd(t *testing.T) {
	router := newTestRouter(t)

	rec := runAudit(t, router, "filing.pdf", "10-k", "web_user1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status got=%d want=%d body=%s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var record contract.AuditRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &record); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if err := contract.Validate(&record); err != nil {
		t.Fatalf("response record invalid: %v", err)
	}
	if record.DocumentType != "10-K" {
		t.Fatalf("document_type got=%q want=10-K", record.DocumentType)
	}
	if len(record.Remediation) != 5 {
		t.Fatalf("remediation count got=%d want=5", len(record.Remediation))
	}

	// Internal fields never leak onto the wire.
	var raw map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decoding raw response: %v", err)
	}
	for _, field := range []string{"user_id", "source"} {
		if _, ok := raw[field]; ok {
			t.Fatalf("response leaks internal field %q", field)
		}
	}

	// The completed audit is immediately visible in history.
	req := httptest.NewRequest(http.MethodGet, "/api/history?user_id=web_user1", nil)
	histRec := httptest.NewRecorder()
	router.ServeHTTP(histRec, req)
	if histRec.Code != http.StatusOK {
		t.Fatalf("history status got=%d body=%s", histRec.Code, histRec.Body.String())
	}
	var hist contract.HistoryResponse
	if err := json.Unmarshal(histRec.Body.Bytes(), &hist); err != nil {
		t.Fatalf("decoding history: %v", err)
	}
	if len(hist.Audits) != 1 || hist.Audits[0].AuditID != record.AuditID {
		t.Fatalf("history got=%+v want one entry for %s", hist.Audits, record.AuditID)
	}

	// Detail fetch round-trips the record.
	req = httptest.NewRequest(http.MethodGet, "/api/audit/"+record.AuditID, nil)
	detRec := httptest.NewRecorder()
	router.ServeHTTP(detRec, req)
	if detRec.Code != http.StatusOK {
		t.Fatalf("detail status got=%d body=%s", detRec.Code, detRec.Body.String())
	}
	var detail contract.AuditRecord
	if err := json.Unmarshal(detRec.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decoding detail: %v", err)
	}
	if detail.Score != record.Score || len(detail.Gaps) != len(record.Gaps) {
		t.Fatalf("detail mismatch: got score=%d gaps=%d want score=%d gaps=%d",
			detail.Score, len(detail.Gaps), record.Score, len(record.Gaps))
	}

	// The generated report is downloadable.
	req = httptest.NewRequest(http.MethodGet, record.ReportPDFURL, nil)
	fileRec := httptest.NewRecorder()
	router.ServeHTTP(fileRec, req)
	if fileRec.Code != http.StatusOK {
		t.Fatalf("file status got=%d", fileRec.Code)
	}
	if got := fileRec.Header().Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("file content type got=%q", got)
	}
	if !bytes.HasPrefix(fileRec.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("served file is not a PDF")
	}
}

func TestRunAuditRejectsNonPDFFilename(t *testing.T) {
	router := newTestRouter(t)

	rec := runAudit(t, router, "filing.docx", "10-K", "web_user1")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status got=%d want=%d", rec.Code, http.StatusBadRequest)
	}
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if body.Detail != "File must be a PDF" {
		t.Fatalf("detail got=%q", body.Detail)
	}
}

func TestRunAuditRejectsUnknownDocumentType(t *testing.T) {
	router := newTestRouter(t)

	rec := runAudit(t, router, "w2.pdf", "W-2", "web_user1")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status got=%d want=%d", rec.Code, http.StatusBadRequest)
	}
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	want := "Invalid document_type. Expected one of: 'SOX 404', '10-K', '8-K', 'Invoice'"
	if body.Detail != want {
		t.Fatalf("detail got=%q want=%q", body.Detail, want)
	}
}

func TestRunAuditNormalizesDocumentTypeCase(t *testing.T) {
	router := newTestRouter(t)

	rec := runAudit(t, router, "ctrl.pdf", "sox 404", "web_user1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status got=%d body=%s", rec.Code, rec.Body.String())
	}
	var record contract.AuditRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &record); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if record.DocumentType != "SOX 404" {
		t.Fatalf("document_type got=%q want=SOX 404", record.DocumentType)
	}
}

func TestRunAuditRejectsMissingUserID(t *testing.T) {
	router := newTestRouter(t)

	rec := runAudit(t, router, "filing.pdf", "10-K", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status got=%d want=%d", rec.Code, http.StatusBadRequest)
	}
}

func TestRunAuditRejectsMissingFile(t *testing.T) {
	router := newTestRouter(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	w.WriteField("document_type", "10-K")
	w.WriteField("user_id", "web_user1")
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/run-audit", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status got=%d want=%d", rec.Code, http.StatusBadRequest)
	}
}

func TestGetAuditUnknownIDIsNotFound(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/audit/aud_ffffffff", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status got=%d want=%d", rec.Code, http.StatusNotFound)
	}
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if body.Detail != "Audit not found" {
		t.Fatalf("detail got=%q", body.Detail)
	}
}
