// Package command translates free-text instructions into dialer actions. It
// never touches a gateway: the telephony side stays behind the dispatcher.
package command

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"autodialer-platform/internal/config"
)

// ErrOracleUnavailable means the language oracle could not be reached or did
// not produce a usable reply. It is internal: the interpreter converts it
// into the deterministic heuristic path, never into a user-facing failure.
var ErrOracleUnavailable = errors.New("command: language oracle unavailable")

type ActionKind string

const (
	ActionCallAll      ActionKind = "call_all"
	ActionCallNumber   ActionKind = "call_number"
	ActionUnrecognized ActionKind = "unrecognized"
)

// Intent is the structured action extracted from a raw instruction.
// Transient per request, never persisted.
type Intent struct {
	Kind   ActionKind
	Number string // set when Kind == ActionCallNumber
}

// LanguageOracle interprets an instruction against the fixed schema. The
// apiKey argument is a per-request override; empty falls back to the
// pre-configured key.
type LanguageOracle interface {
	Interpret(ctx context.Context, text, apiKey string) (Intent, error)
}

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// oraclePrompt is the fixed instruction schema sent alongside every command.
const oraclePrompt = `You classify instructions for a phone autodialer.
Reply with exactly one line and nothing else:
call_all
call_number:<digits>
unknown

Rules:
- "call_all" when the instruction asks to call every uploaded number.
- "call_number:<digits>" when it asks to call one specific number; <digits> is that number with formatting stripped.
- "unknown" when the instruction is not a calling command.

Instruction: %q
`

// GeminiOracle drives the Gemini generateContent REST endpoint.
type GeminiOracle struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

func NewGeminiOracle(cfg config.GeminiConfig) *GeminiOracle {
	return &GeminiOracle{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    geminiBaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
	}
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (g *GeminiOracle) Interpret(ctx context.Context, text, apiKey string) (Intent, error) {
	key := apiKey
	if key == "" {
		key = g.apiKey
	}
	if key == "" {
		return Intent{}, fmt.Errorf("%w: no API key configured", ErrOracleUnavailable)
	}

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: fmt.Sprintf(oraclePrompt, text)}}}},
	})
	if err != nil {
		return Intent{}, fmt.Errorf("%w: encode request: %v", ErrOracleUnavailable, err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, url.QueryEscape(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Intent{}, fmt.Errorf("%w: build request: %v", ErrOracleUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return Intent{}, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Intent{}, fmt.Errorf("%w: HTTP %d", ErrOracleUnavailable, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Intent{}, fmt.Errorf("%w: read response: %v", ErrOracleUnavailable, err)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Intent{}, fmt.Errorf("%w: decode response: %v", ErrOracleUnavailable, err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return Intent{}, fmt.Errorf("%w: empty completion", ErrOracleUnavailable)
	}

	return parseOracleReply(parsed.Candidates[0].Content.Parts[0].Text)
}

// parseOracleReply maps the model's reply onto the action taxonomy. Models
// occasionally wrap answers in fences or prose, so matching is defensive.
func parseOracleReply(reply string) (Intent, error) {
	reply = strings.ToLower(strings.TrimSpace(reply))
	reply = strings.Trim(reply, "`")

	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "call_all":
			return Intent{Kind: ActionCallAll}, nil
		case strings.HasPrefix(line, "call_number:"):
			digits := strings.TrimSpace(strings.TrimPrefix(line, "call_number:"))
			if digits == "" {
				return Intent{}, fmt.Errorf("%w: call_number without digits", ErrOracleUnavailable)
			}
			return Intent{Kind: ActionCallNumber, Number: digits}, nil
		case line == "unknown":
			return Intent{Kind: ActionUnrecognized}, nil
		}
	}
	return Intent{}, fmt.Errorf("%w: unparsable reply %q", ErrOracleUnavailable, reply)
}
