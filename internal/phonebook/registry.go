// Package phonebook owns the set of target phone numbers: validation,
// normalization, de-duplication and persistence.
package phonebook

import (
	"context"
	"errors"
	"strings"
	"sync"

	"autodialer-platform/internal/store"
)

var (
	ErrInvalidNumber = errors.New("phonebook: invalid phone number")
	ErrNotFound      = errors.New("phonebook: number not found")
)

// Normalize reduces a raw phone number to digits with an optional leading
// "+". Fewer than 10 digits is ErrInvalidNumber. Idempotent: normalizing an
// already-normalized number is a no-op.
func Normalize(raw string) (string, error) {
	n := normalizeLoose(raw)
	if digitCount(n) < 10 {
		return "", ErrInvalidNumber
	}
	return n, nil
}

// normalizeLoose strips formatting without validating length. Used for
// lookups so that Remove("+1 (999) 888-7777") finds "19998887777".
func normalizeLoose(raw string) string {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	for i, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// AddOutcome classifies one add attempt. The triple is a first-class result,
// not an error path: invalid and duplicate inputs are expected in bulk
// uploads.
type AddOutcome string

const (
	OutcomeAdded     AddOutcome = "added"
	OutcomeDuplicate AddOutcome = "duplicate"
	OutcomeInvalid   AddOutcome = "invalid"
)

// BatchResult reports per-item counts for a bulk add, plus the raw inputs
// that were rejected so the caller can show them back to the user.
type BatchResult struct {
	Added      int `json:"added"`
	Invalid    int `json:"invalid"`
	Duplicates int `json:"duplicates"`
	Total      int `json:"total"`

	InvalidNumbers   []string `json:"invalid_numbers,omitempty"`
	DuplicateNumbers []string `json:"duplicate_numbers,omitempty"`
}

type snapshot struct {
	PhoneNumbers []string `json:"phone_numbers"`
}

// Registry is the single writer for the phone-number store. All mutations
// persist the full snapshot synchronously before returning.
type Registry struct {
	mu      sync.Mutex
	snap    store.Snapshot
	numbers []string            // insertion order
	index   map[string]struct{} // normalized form
}

// NewRegistry loads the existing snapshot, if any.
func NewRegistry(ctx context.Context, snap store.Snapshot) (*Registry, error) {
	r := &Registry{
		snap:  snap,
		index: make(map[string]struct{}),
	}
	var doc snapshot
	if err := snap.Load(ctx, &doc); err != nil {
		return nil, err
	}
	for _, n := range doc.PhoneNumbers {
		if _, ok := r.index[n]; ok {
			continue
		}
		r.numbers = append(r.numbers, n)
		r.index[n] = struct{}{}
	}
	return r, nil
}

// Add normalizes raw and inserts it unless already present.
func (r *Registry) Add(ctx context.Context, raw string) (AddOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	outcome, _ := r.addLocked(raw)
	if outcome != OutcomeAdded {
		return outcome, nil
	}
	if err := r.persistLocked(ctx); err != nil {
		r.rollbackLastLocked()
		return "", err
	}
	return OutcomeAdded, nil
}

// AddBatch classifies every input and persists once at the end, mirroring a
// bulk file upload. A persistence failure rolls the whole batch back.
func (r *Registry) AddBatch(ctx context.Context, raws []string) (BatchResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := BatchResult{}
	added := 0
	for _, raw := range raws {
		outcome, _ := r.addLocked(raw)
		switch outcome {
		case OutcomeAdded:
			res.Added++
			added++
		case OutcomeDuplicate:
			res.Duplicates++
			res.DuplicateNumbers = append(res.DuplicateNumbers, raw)
		case OutcomeInvalid:
			res.Invalid++
			res.InvalidNumbers = append(res.InvalidNumbers, raw)
		}
	}

	if added > 0 {
		if err := r.persistLocked(ctx); err != nil {
			for i := 0; i < added; i++ {
				r.rollbackLastLocked()
			}
			return BatchResult{}, err
		}
	}
	res.Total = len(r.numbers)
	return res, nil
}

func (r *Registry) addLocked(raw string) (AddOutcome, string) {
	n, err := Normalize(raw)
	if err != nil {
		return OutcomeInvalid, ""
	}
	if _, ok := r.index[n]; ok {
		return OutcomeDuplicate, n
	}
	r.numbers = append(r.numbers, n)
	r.index[n] = struct{}{}
	return OutcomeAdded, n
}

func (r *Registry) rollbackLastLocked() {
	last := r.numbers[len(r.numbers)-1]
	r.numbers = r.numbers[:len(r.numbers)-1]
	delete(r.index, last)
}

// Remove deletes a number by its normalized form.
func (r *Registry) Remove(ctx context.Context, raw string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := normalizeLoose(raw)
	if _, ok := r.index[n]; !ok {
		return ErrNotFound
	}

	prev := r.numbers
	kept := make([]string, 0, len(prev)-1)
	for _, existing := range prev {
		if existing != n {
			kept = append(kept, existing)
		}
	}
	r.numbers = kept
	delete(r.index, n)

	if err := r.persistLocked(ctx); err != nil {
		r.numbers = prev
		r.index[n] = struct{}{}
		return err
	}
	return nil
}

// Contains reports whether the normalized form of raw is registered.
func (r *Registry) Contains(raw string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.index[normalizeLoose(raw)]
	return ok
}

// List returns all numbers in insertion order.
func (r *Registry) List(_ context.Context) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.numbers))
	copy(out, r.numbers)
	return out
}

// Count returns the registry size.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.numbers)
}

// Clear removes every number.
func (r *Registry) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.numbers = nil
	r.index = make(map[string]struct{})
	return r.persistLocked(ctx)
}

func (r *Registry) persistLocked(ctx context.Context) error {
	doc := snapshot{PhoneNumbers: r.numbers}
	if doc.PhoneNumbers == nil {
		doc.PhoneNumbers = []string{}
	}
	return r.snap.Save(ctx, doc)
}
