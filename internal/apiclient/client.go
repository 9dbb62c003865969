// Package apiclient is the shared HTTP client for the audit backend,
// used by both the web frontend and the Discord bot.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/northstar-audit/northstar-backend/internal/contract"
	"github.com/northstar-audit/northstar-backend/internal/logger"
)

// AuditTimeout bounds a synchronous audit submission. The pipeline can
// take a couple of minutes on large documents.
const AuditTimeout = 120 * time.Second

const defaultTimeout = 15 * time.Second

// ErrorKind classifies backend failures for callers that branch on
// them.
type ErrorKind string

const (
	KindInvalidInput ErrorKind = "invalid-input"
	KindNotFound     ErrorKind = "not-found"
	KindInternal     ErrorKind = "internal"
)

// APIError is a non-success response from the backend, carrying the
// decoded error detail.
type APIError struct {
	StatusCode int
	Kind       ErrorKind
	ErrorCode  string
	Message    string
}

func (e *APIError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("backend error %d (%s): %s", e.StatusCode, e.ErrorCode, e.Message)
	}
	return fmt.Sprintf("backend error %d: %s", e.StatusCode, e.Message)
}

// recordCacheSize bounds the transient detail cache. The cache only
// saves a round trip right after submission; the backend stays
// authoritative.
const recordCacheSize = 32

type Client struct {
	baseURL     string
	httpClient  *http.Client
	auditClient *http.Client
	log         *logger.Logger

	mu       sync.Mutex
	cache    map[string]*contract.AuditRecord
	cacheLRU []string
}

func New(baseLog *logger.Logger, baseURL string) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: defaultTimeout},
		auditClient: &http.Client{Timeout: AuditTimeout},
		log:         baseLog.With("component", "apiclient"),
		cache:       make(map[string]*contract.AuditRecord),
	}
}

func (c *Client) cachePut(record *contract.AuditRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.cache[record.AuditID]; !ok {
		c.cacheLRU = append(c.cacheLRU, record.AuditID)
		if len(c.cacheLRU) > recordCacheSize {
			delete(c.cache, c.cacheLRU[0])
			c.cacheLRU = c.cacheLRU[1:]
		}
	}
	c.cache[record.AuditID] = record
}

func (c *Client) cacheGet(auditID string) (*contract.AuditRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	record, ok := c.cache[auditID]
	return record, ok
}

// RunAudit submits a PDF for auditing and blocks until the audit
// completes.
func (c *Client) RunAudit(ctx context.Context, userID string, filename string, documentType string, pdfData []byte) (*contract.AuditRecord, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("building multipart body: %w", err)
	}
	if _, err := fw.Write(pdfData); err != nil {
		return nil, fmt.Errorf("building multipart body: %w", err)
	}
	if err := w.WriteField("document_type", documentType); err != nil {
		return nil, fmt.Errorf("building multipart body: %w", err)
	}
	if err := w.WriteField("user_id", userID); err != nil {
		return nil, fmt.Errorf("building multipart body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("building multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/run-audit", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.auditClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submitting audit: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, c.decodeError(resp)
	}

	var record contract.AuditRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("decoding audit response: %w", err)
	}
	c.cachePut(&record)
	return &record, nil
}

// GetHistory returns the caller's audits, most recent first.
func (c *Client) GetHistory(ctx context.Context, userID string) (*contract.HistoryResponse, error) {
	u := c.baseURL + "/api/history?user_id=" + url.QueryEscape(userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching history: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, c.decodeError(resp)
	}

	var history contract.HistoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		return nil, fmt.Errorf("decoding history response: %w", err)
	}
	return &history, nil
}

// GetAuditDetail returns the full record for one audit. Records cached
// from a recent submission are served directly; everything else is
// fetched from the backend.
func (c *Client) GetAuditDetail(ctx context.Context, auditID string) (*contract.AuditRecord, error) {
	if record, ok := c.cacheGet(auditID); ok {
		return record, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/audit/"+url.PathEscape(auditID), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching audit: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, c.decodeError(resp)
	}

	var record contract.AuditRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("decoding audit response: %w", err)
	}
	c.cachePut(&record)
	return &record, nil
}

// DownloadReport fetches a report PDF. reportURL is the path from the
// audit record, e.g. "/api/files/report_aud_abc123.pdf".
func (c *Client) DownloadReport(ctx context.Context, reportURL string) ([]byte, error) {
	u := reportURL
	if strings.HasPrefix(u, "/") {
		u = c.baseURL + u
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading report: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, c.decodeError(resp)
	}
	return io.ReadAll(resp.Body)
}

// Health reports whether the backend is reachable and healthy.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return c.decodeError(resp)
	}
	return nil
}

// decodeError turns an error response into an APIError. The backend
// envelope is {"detail": <string | {error_code, message}>}.
func (c *Client) decodeError(resp *http.Response) error {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Kind:       kindForStatus(resp.StatusCode),
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		apiErr.Message = resp.Status
		return apiErr
	}

	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || len(envelope.Detail) == 0 {
		apiErr.Message = strings.TrimSpace(string(raw))
		if apiErr.Message == "" {
			apiErr.Message = resp.Status
		}
		return apiErr
	}

	var plain string
	if err := json.Unmarshal(envelope.Detail, &plain); err == nil {
		apiErr.Message = plain
		return apiErr
	}
	var structured struct {
		ErrorCode string `json:"error_code"`
		Message   string `json:"message"`
	}
	if err := json.Unmarshal(envelope.Detail, &structured); err == nil {
		apiErr.ErrorCode = structured.ErrorCode
		apiErr.Message = structured.Message
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(envelope.Detail))
	return apiErr
}

func kindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusNotFound:
		return KindNotFound
	case status >= 400 && status < 500:
		return KindInvalidInput
	default:
		return KindInternal
	}
}
