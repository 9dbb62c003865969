package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/northstar-audit/northstar-backend/internal/apiclient"
	"github.com/northstar-audit/northstar-backend/internal/contract"
	"github.com/northstar-audit/northstar-backend/internal/logger"
)

func newWebRouter(t *testing.T, backend http.Handler) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("creating logger: %v", err)
	}
	router, err := NewRouter(log, apiclient.New(log, srv.URL))
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return router
}

func TestIndexRendersUploadForm(t *testing.T) {
	router := newWebRouter(t, http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status got=%d want=%d", rec.Code, http.StatusOK)
	}
	body := rec.Body.String()
	for _, dt := range contract.DocumentTypes {
		if !strings.Contains(body, ">"+dt+"<") {
			t.Fatalf("form missing document type %q", dt)
		}
	}
	if !strings.Contains(body, `action="/audit"`) {
		t.Fatalf("form missing audit action")
	}
}

func TestHistoryPageListsAudits(t *testing.T) {
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/history" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(contract.HistoryResponse{Audits: []contract.AuditSummary{
			{
				AuditID:      "aud_0a1b2c3d",
				DocumentName: "filing.pdf",
				DocumentType: "10-K",
				Score:        89,
				Grade:        "B",
				Timestamp:    time.Date(2026, 2, 7, 0, 0, 0, 0, time.UTC),
			},
		}})
	})
	router := newWebRouter(t, backend)

	req := httptest.NewRequest(http.MethodGet, "/history", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status got=%d body=%s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, "filing.pdf") || !strings.Contains(body, "/audit/aud_0a1b2c3d") {
		t.Fatalf("history page missing audit row: %s", body)
	}
}

func TestHistorySetsSessionCookie(t *testing.T) {
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(contract.HistoryResponse{Audits: []contract.AuditSummary{}})
	})
	router := newWebRouter(t, backend)

	req := httptest.NewRequest(http.MethodGet, "/history", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var found bool
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == userCookie && strings.HasPrefix(cookie.Value, "web_") {
			found = true
		}
	}
	if !found {
		t.Fatalf("session cookie not set")
	}
}

func TestAuditDetailNotFound(t *testing.T) {
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail": "Audit not found"}`))
	})
	router := newWebRouter(t, backend)

	req := httptest.NewRequest(http.MethodGet, "/audit/aud_ffffffff", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status got=%d want=%d", rec.Code, http.StatusNotFound)
	}
	if !strings.Contains(rec.Body.String(), "No audit found") {
		t.Fatalf("error page missing message: %s", rec.Body.String())
	}
}

func TestReportProxiesPDF(t *testing.T) {
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/files/report_aud_1.pdf" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4 data"))
	})
	router := newWebRouter(t, backend)

	req := httptest.NewRequest(http.MethodGet, "/reports/report_aud_1.pdf", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status got=%d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("content type got=%q", got)
	}
}
