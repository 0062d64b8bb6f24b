package command

import (
	"context"
	"errors"
	"fmt"

	"autodialer-platform/internal/calllog"
	"autodialer-platform/internal/phonebook"
	"autodialer-platform/pkg/logger"
)

// CallDispatcher is the slice of the dispatcher the interpreter needs.
type CallDispatcher interface {
	CallOne(ctx context.Context, raw string) (calllog.CallRecord, error)
	CallAll(ctx context.Context) ([]calllog.CallRecord, error)
}

// Result describes what a command was understood as and what it did.
type Result struct {
	Action  ActionKind `json:"action"`
	Number  string     `json:"number,omitempty"`
	Message string     `json:"message"`

	CallsMade int                  `json:"calls_made"`
	Records   []calllog.CallRecord `json:"records,omitempty"`
}

// Interpreter runs each command through three stages: parse the raw text into
// an intent, classify it, then hand it to the dispatcher.
type Interpreter struct {
	oracle     LanguageOracle
	dispatcher CallDispatcher
}

func NewInterpreter(oracle LanguageOracle, dispatcher CallDispatcher) *Interpreter {
	return &Interpreter{oracle: oracle, dispatcher: dispatcher}
}

// Execute processes one natural-language command. apiKey optionally overrides
// the configured oracle key for this request.
//
// An unrecognized command is a successful execution with no side effect; the
// returned error is reserved for validation and persistence failures during
// dispatch.
func (i *Interpreter) Execute(ctx context.Context, text, apiKey string) (Result, error) {
	intent := i.parse(ctx, text, apiKey)

	switch intent.Kind {
	case ActionUnrecognized:
		return Result{
			Action:  ActionUnrecognized,
			Message: fmt.Sprintf("could not understand command %q; try \"call all numbers\" or \"call 1234567890\"", text),
		}, nil

	case ActionCallAll:
		records, err := i.dispatcher.CallAll(ctx)
		if err != nil {
			return Result{}, err
		}
		return Result{
			Action:    ActionCallAll,
			Message:   fmt.Sprintf("called %d numbers", len(records)),
			CallsMade: len(records),
			Records:   records,
		}, nil

	case ActionCallNumber:
		// Normalization failure is a user-facing validation error, not a
		// reason to re-parse.
		number, err := phonebook.Normalize(intent.Number)
		if err != nil {
			return Result{}, fmt.Errorf("%w: %q is not a valid phone number", phonebook.ErrInvalidNumber, intent.Number)
		}
		rec, err := i.dispatcher.CallOne(ctx, number)
		if err != nil {
			return Result{}, err
		}
		return Result{
			Action:    ActionCallNumber,
			Number:    number,
			Message:   fmt.Sprintf("called %s: %s", number, rec.Status),
			CallsMade: 1,
			Records:   []calllog.CallRecord{rec},
		}, nil

	default:
		return Result{}, fmt.Errorf("command: unexpected action %q", intent.Kind)
	}
}

// parse asks the oracle first and falls back to the deterministic heuristic
// on any oracle failure. An explicit "unknown" from the oracle is an answer,
// not a failure, and does not trigger the fallback.
func (i *Interpreter) parse(ctx context.Context, text, apiKey string) Intent {
	if i.oracle == nil {
		return heuristicParse(text)
	}

	intent, err := i.oracle.Interpret(ctx, text, apiKey)
	if err != nil {
		log := logger.From(ctx)
		if errors.Is(err, ErrOracleUnavailable) {
			log.Warn("language oracle unavailable, using heuristic parser", "err", err)
		} else {
			log.Error("language oracle failed, using heuristic parser", "err", err)
		}
		return heuristicParse(text)
	}
	return intent
}
