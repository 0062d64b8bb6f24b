package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"autodialer-platform/internal/auth"
	"autodialer-platform/internal/calllog"
	"autodialer-platform/internal/command"
	"autodialer-platform/internal/config"
	"autodialer-platform/internal/dialer"
	"autodialer-platform/internal/phonebook"
	"autodialer-platform/internal/store"
)

func newTestAPI(t *testing.T, cfg config.Config) (*gin.Engine, Handlers) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	ctx := context.Background()

	registry, err := phonebook.NewRegistry(ctx, store.NewFile(filepath.Join(dir, "phones.json")))
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	callLog, err := calllog.NewLog(ctx, store.NewFile(filepath.Join(dir, "calls.json")))
	if err != nil {
		t.Fatalf("log: %v", err)
	}

	gateway := dialer.NewSimulatedGateway(rand.NewSource(1), 0, 0)
	dispatcher := dialer.NewDispatcher(registry, callLog, gateway, 1)
	interpreter := command.NewInterpreter(nil, dispatcher) // heuristic-only

	var authManager *auth.Manager
	if cfg.Auth.Enabled() {
		authManager, err = auth.NewManager(cfg.Auth)
		if err != nil {
			t.Fatalf("auth: %v", err)
		}
	}

	h := Handlers{
		Registry:    registry,
		Log:         callLog,
		Dispatcher:  dispatcher,
		Interpreter: interpreter,
		Auth:        authManager,
		Cfg:         cfg,
	}

	r := gin.New()
	if h.Auth != nil {
		r.POST("/auth/token", h.IssueToken)
	}
	api := r.Group("/")
	api.Use(auth.RequireToken(h.Auth))
	{
		api.POST("/upload-numbers", h.UploadNumbers)
		api.POST("/upload-numbers-file", h.UploadNumbersFile)
		api.GET("/phone-numbers", h.ListNumbers)
		api.DELETE("/phone-numbers/:number", h.RemoveNumber)
		api.DELETE("/phone-numbers", h.ClearNumbers)
		api.POST("/call-all", h.CallAll)
		api.POST("/call-number/:number", h.CallNumber)
		api.POST("/ai-command", h.ExecuteCommand)
		api.GET("/call-logs", h.ListCallLogs)
		api.DELETE("/call-logs", h.PurgeCallLogs)
		api.GET("/call-statistics", h.GetStatistics)
		api.GET("/config/status", h.ConfigStatus)
	}
	return r, h
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestUploadNumbers_Counts(t *testing.T) {
	r, _ := newTestAPI(t, config.Config{})

	w := doJSON(t, r, http.MethodPost, "/upload-numbers", gin.H{
		"phone_numbers": []string{"+12345678900", "123", "+1 (234) 567-8900", "19998887777"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	out := decode(t, w)
	if out["added"].(float64) != 2 || out["invalid"].(float64) != 1 || out["duplicates"].(float64) != 1 {
		t.Fatalf("unexpected counts: %v", out)
	}
}

func TestUploadNumbers_MissingBody(t *testing.T) {
	r, _ := newTestAPI(t, config.Config{})

	w := doJSON(t, r, http.MethodPost, "/upload-numbers", gin.H{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestUploadNumbersFile_ParsesLines(t *testing.T) {
	r, _ := newTestAPI(t, config.Config{})

	var buf bytes.Buffer
	mw := newMultipart(t, &buf, "file", "numbers.txt", "+12345678900\n\n19998887777\n123\n")
	req := httptest.NewRequest(http.MethodPost, "/upload-numbers-file", &buf)
	req.Header.Set("Content-Type", mw)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	out := decode(t, w)
	if out["added"].(float64) != 2 || out["invalid"].(float64) != 1 {
		t.Fatalf("unexpected counts: %v", out)
	}
}

func TestRemoveNumber(t *testing.T) {
	r, _ := newTestAPI(t, config.Config{})

	doJSON(t, r, http.MethodPost, "/upload-numbers", gin.H{"phone_numbers": []string{"19998887777"}})

	if w := doJSON(t, r, http.MethodDelete, "/phone-numbers/19998887777", nil); w.Code != http.StatusOK {
		t.Fatalf("delete failed: %d %s", w.Code, w.Body.String())
	}
	if w := doJSON(t, r, http.MethodDelete, "/phone-numbers/19998887777", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing number, got %d", w.Code)
	}
}

func TestRemoveNumber_RetainsCallHistory(t *testing.T) {
	r, _ := newTestAPI(t, config.Config{})

	doJSON(t, r, http.MethodPost, "/upload-numbers", gin.H{"phone_numbers": []string{"19998887777"}})
	doJSON(t, r, http.MethodPost, "/call-all", nil)
	doJSON(t, r, http.MethodDelete, "/phone-numbers/19998887777", nil)

	out := decode(t, doJSON(t, r, http.MethodGet, "/call-statistics", nil))
	if out["total_calls"].(float64) != 1 {
		t.Fatalf("history must survive registry removal: %v", out)
	}
}

func TestCallAll_EmptyRegistry(t *testing.T) {
	r, _ := newTestAPI(t, config.Config{})

	w := doJSON(t, r, http.MethodPost, "/call-all", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCallAll_ProducesRecords(t *testing.T) {
	r, _ := newTestAPI(t, config.Config{})

	doJSON(t, r, http.MethodPost, "/upload-numbers", gin.H{"phone_numbers": []string{"+12345678900", "19998887777"}})

	w := doJSON(t, r, http.MethodPost, "/call-all", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	out := decode(t, w)
	if out["calls_made"].(float64) != 2 {
		t.Fatalf("expected 2 calls, got %v", out)
	}

	stats := decode(t, doJSON(t, r, http.MethodGet, "/call-statistics", nil))
	if stats["total_calls"].(float64) != 2 {
		t.Fatalf("expected total=2, got %v", stats)
	}
}

func TestCallNumber_InvalidNumber(t *testing.T) {
	r, _ := newTestAPI(t, config.Config{})

	w := doJSON(t, r, http.MethodPost, "/call-number/123", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCallNumber_ReturnsRecord(t *testing.T) {
	r, _ := newTestAPI(t, config.Config{})

	w := doJSON(t, r, http.MethodPost, "/call-number/19998887777", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	out := decode(t, w)
	if out["phone_number"] != "19998887777" || out["call_id"] == "" {
		t.Fatalf("unexpected record: %v", out)
	}
}

func TestExecuteCommand_CallAll(t *testing.T) {
	r, _ := newTestAPI(t, config.Config{})

	doJSON(t, r, http.MethodPost, "/upload-numbers", gin.H{"phone_numbers": []string{"+12345678900"}})

	w := doJSON(t, r, http.MethodPost, "/ai-command", gin.H{"command": "Call all uploaded numbers"})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	out := decode(t, w)
	if out["success"] != true {
		t.Fatalf("expected success, got %v", out)
	}
}

func TestExecuteCommand_UnrecognizedHasNoSideEffect(t *testing.T) {
	r, _ := newTestAPI(t, config.Config{})

	w := doJSON(t, r, http.MethodPost, "/ai-command", gin.H{"command": "what time is it"})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	out := decode(t, w)
	if out["success"] != false {
		t.Fatalf("expected success=false, got %v", out)
	}

	stats := decode(t, doJSON(t, r, http.MethodGet, "/call-statistics", nil))
	if stats["total_calls"].(float64) != 0 {
		t.Fatalf("unrecognized command must not create records: %v", stats)
	}
}

func TestListCallLogs_Limit(t *testing.T) {
	r, _ := newTestAPI(t, config.Config{})

	for _, n := range []string{"14155550100", "14155550101", "14155550102"} {
		doJSON(t, r, http.MethodPost, "/call-number/"+n, nil)
	}

	out := decode(t, doJSON(t, r, http.MethodGet, "/call-logs?limit=2", nil))
	if out["count"].(float64) != 2 {
		t.Fatalf("expected 2 logs, got %v", out)
	}

	if w := doJSON(t, r, http.MethodGet, "/call-logs?limit=nope", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", w.Code)
	}
}

func TestPurgeCallLogs_ByNumber(t *testing.T) {
	r, _ := newTestAPI(t, config.Config{})

	doJSON(t, r, http.MethodPost, "/call-number/14155550100", nil)
	doJSON(t, r, http.MethodPost, "/call-number/14155550101", nil)

	out := decode(t, doJSON(t, r, http.MethodDelete, "/call-logs?number=14155550100", nil))
	if out["removed"].(float64) != 1 {
		t.Fatalf("expected 1 removed, got %v", out)
	}

	stats := decode(t, doJSON(t, r, http.MethodGet, "/call-statistics", nil))
	if stats["total_calls"].(float64) != 1 {
		t.Fatalf("expected 1 remaining record, got %v", stats)
	}
}

func TestConfigStatus(t *testing.T) {
	cfg := config.Config{}
	cfg.Store.Backend = "file"
	r, _ := newTestAPI(t, cfg)

	out := decode(t, doJSON(t, r, http.MethodGet, "/config/status", nil))
	if out["twilio"] != "not_set" || out["gateway"] != "simulated" {
		t.Fatalf("unexpected status: %v", out)
	}
	if out["store_backend"] != "file" {
		t.Fatalf("unexpected backend: %v", out)
	}
}

func TestAuth_ProtectsRoutesWhenEnabled(t *testing.T) {
	cfg := config.Config{}
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.AccessTokenTTL = 15 * time.Minute
	r, _ := newTestAPI(t, cfg)

	if w := doJSON(t, r, http.MethodGet, "/phone-numbers", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	tokenResp := doJSON(t, r, http.MethodPost, "/auth/token", gin.H{"operator": "ops", "secret": "test-secret"})
	if tokenResp.Code != http.StatusOK {
		t.Fatalf("token issue failed: %d %s", tokenResp.Code, tokenResp.Body.String())
	}
	token := decode(t, tokenResp)["access_token"].(string)

	req := httptest.NewRequest(http.MethodGet, "/phone-numbers", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d: %s", w.Code, w.Body.String())
	}

	if w := doJSON(t, r, http.MethodPost, "/auth/token", gin.H{"operator": "ops", "secret": "wrong"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong secret, got %d", w.Code)
	}
}

// newMultipart writes a single-file multipart body and returns the content type.
func newMultipart(t *testing.T, buf *bytes.Buffer, field, filename, content string) string {
	t.Helper()
	mw := multipart.NewWriter(buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return mw.FormDataContentType()
}
