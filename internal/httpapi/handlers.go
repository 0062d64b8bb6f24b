// Package httpapi exposes the engine over HTTP. Handlers stay thin: parse
// and validate input, call internal services, return JSON.
package httpapi

import (
	"bufio"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"autodialer-platform/internal/auth"
	"autodialer-platform/internal/calllog"
	"autodialer-platform/internal/command"
	"autodialer-platform/internal/config"
	"autodialer-platform/internal/dialer"
	"autodialer-platform/internal/phonebook"
	"autodialer-platform/internal/store"
	"autodialer-platform/pkg/logger"
)

const defaultLogLimit = 100

// Handlers groups HTTP handlers for dependency injection.
type Handlers struct {
	Registry    *phonebook.Registry
	Log         *calllog.Log
	Dispatcher  *dialer.Dispatcher
	Interpreter *command.Interpreter
	Auth        *auth.Manager
	Cfg         config.Config
}

// writeError maps internal failures onto HTTP statuses with human-readable
// reasons. Raw internals never leak: persistence details go to the log, the
// caller gets a stable message.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, phonebook.ErrInvalidNumber):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, phonebook.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, dialer.ErrNoNumbers):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "no phone numbers uploaded"})
	case errors.Is(err, store.ErrPersistence):
		logger.FromGin(c).Error("persistence failure", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "storage failure, request aborted"})
	default:
		logger.FromGin(c).Error("request failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// --- Phone registry ---

type uploadNumbersRequest struct {
	PhoneNumbers []string `json:"phone_numbers" binding:"required"`
}

// UploadNumbers adds a list of raw numbers and reports per-item counts.
func (h Handlers) UploadNumbers(c *gin.Context) {
	var req uploadNumbersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "phone_numbers array required"})
		return
	}

	res, err := h.Registry.AddBatch(c.Request.Context(), req.PhoneNumbers)
	if err != nil {
		writeError(c, err)
		return
	}
	logger.FromGin(c).Info("numbers uploaded", "added", res.Added, "invalid", res.Invalid, "duplicates", res.Duplicates)
	c.JSON(http.StatusOK, res)
}

// UploadNumbersFile accepts a text upload with one raw number per line.
func (h Handlers) UploadNumbersFile(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "file upload required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "could not read upload"})
		return
	}
	defer f.Close()

	var raws []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			raws = append(raws, line)
		}
	}
	if err := scanner.Err(); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "could not read upload"})
		return
	}

	res, err := h.Registry.AddBatch(c.Request.Context(), raws)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h Handlers) ListNumbers(c *gin.Context) {
	numbers := h.Registry.List(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"phone_numbers": numbers, "total": len(numbers)})
}

func (h Handlers) RemoveNumber(c *gin.Context) {
	number := c.Param("number")
	if err := h.Registry.Remove(c.Request.Context(), number); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   "phone number removed",
		"remaining": h.Registry.Count(),
	})
}

func (h Handlers) ClearNumbers(c *gin.Context) {
	if err := h.Registry.Clear(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "all phone numbers removed"})
}

// --- Calls ---

// CallAll dials every registered number through the configured gateway.
func (h Handlers) CallAll(c *gin.Context) {
	records, err := h.Dispatcher.CallAll(c.Request.Context())
	if err != nil && len(records) == 0 {
		writeError(c, err)
		return
	}
	// A persistence failure mid-batch still reports what was attempted.
	resp := gin.H{"calls_made": len(records), "results": records}
	if err != nil {
		logger.FromGin(c).Error("batch finished with persistence failure", "err", err)
		resp["warning"] = "some call records could not be persisted"
	}
	c.JSON(http.StatusOK, resp)
}

func (h Handlers) CallNumber(c *gin.Context) {
	rec, err := h.Dispatcher.CallOne(c.Request.Context(), c.Param("number"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// --- Natural-language commands ---

type commandRequest struct {
	Command      string `json:"command" binding:"required"`
	GeminiAPIKey string `json:"gemini_api_key"`
}

// ExecuteCommand routes a free-text instruction through the interpreter.
func (h Handlers) ExecuteCommand(c *gin.Context) {
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "command required"})
		return
	}

	res, err := h.Interpreter.Execute(c.Request.Context(), req.Command, req.GeminiAPIKey)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": res.Action != command.ActionUnrecognized,
		"result":  res,
	})
}

// --- Call log ---

func (h Handlers) ListCallLogs(c *gin.Context) {
	limit := defaultLogLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	status := calllog.Status(c.Query("status"))

	records := h.Log.List(c.Request.Context(), limit, status)
	c.JSON(http.StatusOK, gin.H{"logs": records, "count": len(records)})
}

// PurgeCallLogs prunes history: for one number when ?number= is given,
// otherwise the whole log. History is never pruned implicitly.
func (h Handlers) PurgeCallLogs(c *gin.Context) {
	if number := c.Query("number"); number != "" {
		normalized, err := phonebook.Normalize(number)
		if err != nil {
			writeError(c, err)
			return
		}
		removed, err := h.Log.PurgeNumber(c.Request.Context(), normalized)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "call history purged", "removed": removed})
		return
	}

	if err := h.Log.Clear(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "call history cleared"})
}

func (h Handlers) GetStatistics(c *gin.Context) {
	c.JSON(http.StatusOK, h.Log.Stats(c.Request.Context()))
}

// --- Config status / auth ---

func configuredOr(ok bool) string {
	if ok {
		return "configured"
	}
	return "not_set"
}

// ConfigStatus reports which integrations are configured, without exposing
// any secret material.
func (h Handlers) ConfigStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"twilio":        configuredOr(h.Cfg.Twilio.Configured()),
		"gemini":        configuredOr(h.Cfg.Gemini.Configured()),
		"auth":          configuredOr(h.Cfg.Auth.Enabled()),
		"store_backend": h.Cfg.Store.Backend,
		"gateway":       h.Dispatcher.GatewayName(),
	})
}

type tokenRequest struct {
	Operator string `json:"operator" binding:"required"`
	Secret   string `json:"secret" binding:"required"`
}

// IssueToken exchanges the shared secret for a bearer token. Only mounted
// when auth is enabled.
func (h Handlers) IssueToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "operator and secret required"})
		return
	}
	if req.Secret != h.Cfg.Auth.JWTSecret {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid secret"})
		return
	}
	tok, err := h.Auth.IssueToken(time.Now(), req.Operator)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": tok})
}
