package dialer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"autodialer-platform/internal/calllog"
	"autodialer-platform/internal/phonebook"
	"autodialer-platform/pkg/logger"
)

var ErrNoNumbers = errors.New("dialer: no phone numbers uploaded")

// Dispatcher walks numbers through the gateway and appends one record per
// attempt to the call log. It holds no persistent state of its own.
//
// Dial policy: CallOne accepts any normalizable number, registered or not,
// matching the direct single-call endpoint's behavior. The same policy
// applies to every caller, including the command interpreter.
type Dispatcher struct {
	registry *phonebook.Registry
	log      *calllog.Log
	gateway  Gateway

	// concurrency bounds the call-all fan-out. 1 preserves registry order in
	// the log; above 1 the guarantee relaxes to exactly-one-record-per-number.
	concurrency int

	// injectable for deterministic tests
	clock func() time.Time
	newID func() string
}

func NewDispatcher(registry *phonebook.Registry, log *calllog.Log, gateway Gateway, concurrency int) *Dispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Dispatcher{
		registry:    registry,
		log:         log,
		gateway:     gateway,
		concurrency: concurrency,
		clock:       time.Now,
		newID:       uuid.NewString,
	}
}

// GatewayName reports which gateway variant this dispatcher drives.
func (d *Dispatcher) GatewayName() string { return d.gateway.Name() }

// CallOne dials a single number and logs the attempt.
func (d *Dispatcher) CallOne(ctx context.Context, raw string) (calllog.CallRecord, error) {
	number, err := phonebook.Normalize(raw)
	if err != nil {
		return calllog.CallRecord{}, err
	}

	rec := d.dial(ctx, number)
	if err := d.log.Append(ctx, rec); err != nil {
		return calllog.CallRecord{}, err
	}
	return rec, nil
}

// CallAll dials every registered number. The gateway was chosen when this
// dispatcher was built, so a batch is always homogeneous. Per-number gateway
// failures become failed records and never abort or cancel sibling calls;
// only a persistence failure is returned as an error, alongside whatever
// records were already written.
func (d *Dispatcher) CallAll(ctx context.Context) ([]calllog.CallRecord, error) {
	numbers := d.registry.List(ctx)
	if len(numbers) == 0 {
		return nil, ErrNoNumbers
	}

	log := logger.From(ctx)
	log.Info("dispatching batch", "numbers", len(numbers), "gateway", d.gateway.Name(), "concurrency", d.concurrency)

	records := make([]calllog.CallRecord, len(numbers))

	// Plain errgroup, no derived cancel context: one failure must not cancel
	// in-flight siblings.
	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, number := range numbers {
		i, number := i, number
		g.Go(func() error {
			rec := d.dial(ctx, number)
			records[i] = rec
			if err := d.log.Append(ctx, rec); err != nil {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return records, err
	}
	return records, nil
}

// dial performs one attempt and converts any gateway fault into a failed
// record at this boundary.
func (d *Dispatcher) dial(ctx context.Context, number string) calllog.CallRecord {
	rec := calllog.CallRecord{
		CallID:      d.newID(),
		PhoneNumber: number,
		Timestamp:   d.clock().UTC(),
	}

	out, err := d.gateway.PlaceCall(ctx, number)
	if err != nil {
		out = Outcome{
			Status:       calllog.StatusFailed,
			Message:      fmt.Sprintf("call failed: %v", err),
			ErrorMessage: err.Error(),
		}
	}

	rec.Status = out.Status
	rec.Message = out.Message
	rec.ErrorMessage = out.ErrorMessage
	rec.ProviderSID = out.ProviderSID
	if out.Status == calllog.StatusAnswered {
		rec.Duration = out.Duration
	}

	logger.From(ctx).Debug("call attempt",
		"call_id", rec.CallID,
		"phone_number", rec.PhoneNumber,
		"status", rec.Status,
		"gateway", d.gateway.Name(),
	)
	return rec
}
