package dialer

import (
	"context"
	"fmt"
	"strconv"

	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"autodialer-platform/internal/calllog"
	"autodialer-platform/internal/config"
)

// defaultTwiMLURL tells Twilio what to play once the callee picks up.
const defaultTwiMLURL = "http://demo.twilio.com/docs/voice.xml"

// TwilioGateway places calls through the Twilio REST API. The per-call
// timeout is owned here: a hung provider call surfaces as a failed outcome,
// never as a stuck batch.
type TwilioGateway struct {
	api  *twilio.RestClient
	from string
}

func NewTwilioGateway(cfg config.TwilioConfig) (*TwilioGateway, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("dialer: twilio credentials incomplete")
	}

	tc := &twilioclient.Client{
		Credentials: twilioclient.NewCredentials(cfg.AccountSID, cfg.AuthToken),
	}
	tc.SetAccountSid(cfg.AccountSID)
	tc.SetTimeout(cfg.CallTimeout)

	api := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
		Client:   tc,
	})
	return &TwilioGateway{api: api, from: cfg.FromNumber}, nil
}

func (g *TwilioGateway) Name() string { return "twilio" }

func (g *TwilioGateway) PlaceCall(ctx context.Context, number string) (Outcome, error) {
	params := &openapi.CreateCallParams{}
	params.SetTo(number)
	params.SetFrom(g.from)
	params.SetUrl(defaultTwiMLURL)

	call, err := g.api.Api.CreateCall(params)
	if err != nil {
		return Outcome{
			Status:       calllog.StatusFailed,
			Message:      fmt.Sprintf("twilio error: %v", err),
			ErrorMessage: err.Error(),
		}, nil
	}

	out := Outcome{}
	if call.Sid != nil {
		out.ProviderSID = *call.Sid
	}

	status := ""
	if call.Status != nil {
		status = *call.Status
	}
	switch status {
	case "queued", "ringing", "in-progress":
		out.Status = calllog.StatusQueued
		out.Message = fmt.Sprintf("call %s is %s", out.ProviderSID, status)
	case "completed":
		out.Status = calllog.StatusAnswered
		out.Message = fmt.Sprintf("call %s completed successfully", out.ProviderSID)
		if call.Duration != nil {
			if d, err := strconv.ParseFloat(*call.Duration, 64); err == nil {
				out.Duration = d
			}
		}
	default:
		out.Status = calllog.StatusFailed
		out.Message = fmt.Sprintf("call %s status: %s", out.ProviderSID, status)
		out.ErrorMessage = fmt.Sprintf("provider status %q", status)
	}
	return out, nil
}
