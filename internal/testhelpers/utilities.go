package testhelpers

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// ========================================
// Test File Utilities
// ========================================

// WriteTestFile creates a test file with the given content
func WriteTestFile(t *testing.T, dir, filename, content string) string {
	t.Helper()

	path := filepath.Join(dir, filename)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create parent directories for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test file %s: %v", path, err)
	}
	return path
}

// ========================================
// Concurrent Testing Helpers
// ========================================

// ConcurrentTest runs a function concurrently multiple times and waits for completion
func ConcurrentTest(t *testing.T, goroutines int, fn func(workerID int)) {
	t.Helper()

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()
			fn(id)
		}(i)
	}
	wg.Wait()
}

// ========================================
// Time Helpers
// ========================================

// AssertTimeWithin checks if a time is within a duration of another time
func AssertTimeWithin(t *testing.T, actual, reference time.Time, tolerance time.Duration, msg string) {
	t.Helper()

	diff := actual.Sub(reference)
	if diff < 0 {
		diff = -diff
	}
	if diff > tolerance {
		t.Errorf("%s: time difference %v exceeds tolerance %v (actual: %v, reference: %v)",
			msg, diff, tolerance, actual, reference)
	}
}

// FixedClock returns a clock that always reports t
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// SteppingClock returns a clock whose value can be moved forward between runs
type SteppingClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewSteppingClock creates a clock starting at start
func NewSteppingClock(start time.Time) *SteppingClock {
	return &SteppingClock{now: start.UTC()}
}

// Now reports the current clock value
func (c *SteppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d
func (c *SteppingClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
