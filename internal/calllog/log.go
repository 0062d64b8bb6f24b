// Package calllog owns the append-only call history and its derived
// statistics. Records are immutable once appended; retries show up as new
// records, never as updates.
package calllog

import (
	"context"
	"sync"
	"time"

	"autodialer-platform/internal/store"
)

type Status string

const (
	StatusQueued   Status = "queued"
	StatusAnswered Status = "answered"
	StatusFailed   Status = "failed"
)

// CallRecord represents one call attempt. Status is terminal: a record is
// never re-opened after the gateway reports an outcome.
type CallRecord struct {
	CallID      string `json:"call_id"`
	PhoneNumber string `json:"phone_number"`
	Status      Status `json:"status"`

	// Duration is elapsed seconds; only meaningful when Status == answered.
	Duration float64 `json:"duration,omitempty"`

	Message      string `json:"message,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	// ProviderSID is the telephony provider's call identifier, when the real
	// gateway placed the call.
	ProviderSID string `json:"provider_sid,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Stats is derived from the full log on every read, never cached.
type Stats struct {
	TotalCalls int `json:"total_calls"`
	Answered   int `json:"answered"`
	Failed     int `json:"failed"`
	Queued     int `json:"queued"`

	// SuccessRate is answered/total as a fraction in [0,1]; 0 for an empty log.
	SuccessRate float64 `json:"success_rate"`
}

type snapshot struct {
	Calls []CallRecord `json:"calls"`
}

// Log is the single writer for the call-history store.
type Log struct {
	mu      sync.Mutex
	snap    store.Snapshot
	records []CallRecord // append order == chronological order
}

// NewLog loads the existing history, if any.
func NewLog(ctx context.Context, snap store.Snapshot) (*Log, error) {
	l := &Log{snap: snap}
	var doc snapshot
	if err := snap.Load(ctx, &doc); err != nil {
		return nil, err
	}
	l.records = doc.Calls
	return l, nil
}

// Append durably writes one record. Safe under concurrent writers; the write
// is visible to readers as soon as Append returns.
func (l *Log) Append(ctx context.Context, rec CallRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append(l.records, rec)
	if err := l.persistLocked(ctx); err != nil {
		l.records = l.records[:len(l.records)-1]
		return err
	}
	return nil
}

// List returns up to limit records, most recent first. A zero or negative
// limit returns the whole log. statusFilter narrows to one status when set.
func (l *Log) List(_ context.Context, limit int, statusFilter Status) []CallRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]CallRecord, 0, len(l.records))
	for i := len(l.records) - 1; i >= 0; i-- {
		rec := l.records[i]
		if statusFilter != "" && rec.Status != statusFilter {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Stats recomputes counts over the full log, not just the last page.
func (l *Log) Stats(_ context.Context) Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Stats{TotalCalls: len(l.records)}
	for _, rec := range l.records {
		switch rec.Status {
		case StatusAnswered:
			s.Answered++
		case StatusFailed:
			s.Failed++
		case StatusQueued:
			s.Queued++
		}
	}
	if s.TotalCalls > 0 {
		s.SuccessRate = float64(s.Answered) / float64(s.TotalCalls)
	}
	return s
}

// PurgeNumber deletes the history for one number. Removing a number from the
// registry does NOT call this; history is call-centric and survives registry
// edits unless pruned explicitly.
func (l *Log) PurgeNumber(ctx context.Context, number string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := l.records
	kept := make([]CallRecord, 0, len(prev))
	for _, rec := range prev {
		if rec.PhoneNumber != number {
			kept = append(kept, rec)
		}
	}
	removed := len(prev) - len(kept)
	if removed == 0 {
		return 0, nil
	}

	l.records = kept
	if err := l.persistLocked(ctx); err != nil {
		l.records = prev
		return 0, err
	}
	return removed, nil
}

// Clear drops the entire history.
func (l *Log) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := l.records
	l.records = nil
	if err := l.persistLocked(ctx); err != nil {
		l.records = prev
		return err
	}
	return nil
}

func (l *Log) persistLocked(ctx context.Context) error {
	doc := snapshot{Calls: l.records}
	if doc.Calls == nil {
		doc.Calls = []CallRecord{}
	}
	return l.snap.Save(ctx, doc)
}
