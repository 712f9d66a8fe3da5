package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/molkabha/telegram-bot-automation-testing/pkg/probe"
)

// Session collects probe results for one harness run. It is safe for
// concurrent use and append-only: recorded results are never mutated or
// reordered.
type Session struct {
	id      string
	started time.Time

	mu      sync.Mutex
	results []probe.Result
}

// Summary aggregates a session's results.
type Summary struct {
	Total            int
	Passed           int
	Failed           int
	Errors           int
	SuccessRate      float64
	AvgExecutionTime time.Duration
	Duration         time.Duration
}

// HasFailures reports whether anything failed or errored.
func (s Summary) HasFailures() bool {
	return s.Failed > 0 || s.Errors > 0
}

// New creates a new session.
func New() *Session {
	// Give the session a unique ID, so we can identify its artifacts easily.
	return &Session{
		id:      generateSessionID(),
		started: time.Now(),
		results: make([]probe.Result, 0),
	}
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// StartedAt returns when the session began.
func (s *Session) StartedAt() time.Time {
	return s.started
}

// Append records one result.
func (s *Session) Append(result probe.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results = append(s.results, result)
}

// AppendAll records a batch of results in order.
func (s *Session) AppendAll(results []probe.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results = append(s.results, results...)
}

// Results returns a copy of the recorded results in append order.
func (s *Session) Results() []probe.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]probe.Result, len(s.results))
	copy(out, s.results)

	return out
}

// Len returns the number of recorded results.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.results)
}

// Summary computes the aggregate view of the session so far.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary := Summary{
		Total:    len(s.results),
		Duration: time.Since(s.started),
	}

	var totalExec time.Duration

	for _, r := range s.results {
		switch r.Status {
		case probe.StatusPassed:
			summary.Passed++
		case probe.StatusFailed:
			summary.Failed++
		default:
			// Unknown statuses count as errors so the partition always
			// adds up to the total.
			summary.Errors++
		}

		totalExec += r.ExecutionTime
	}

	if summary.Total > 0 {
		summary.SuccessRate = float64(summary.Passed) / float64(summary.Total) * 100
		summary.AvgExecutionTime = totalExec / time.Duration(summary.Total)
	}

	return summary
}

// generateSessionID generates a unique ID for a session.
func generateSessionID() string {
	// Generate 8 random bytes.
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		// If random fails, use timestamp only.
		return time.Now().UTC().Format("20060102-150405")
	}

	// Format as timestamp-random.
	return fmt.Sprintf("%s-%s",
		time.Now().UTC().Format("20060102-150405"),
		hex.EncodeToString(b),
	)
}
