// Package utils holds test helpers shared across packages.
package utils

import (
	"runtime"
	"testing"
	"time"
)

// GoroutineLeakDetector fails a test when goroutines started during it are
// still running at Check. Connection teardown is asynchronous, so Check
// polls until the count settles or the timeout passes.
type GoroutineLeakDetector struct {
	t             testing.TB
	baseline      int
	allowedGrowth int
	timeout       time.Duration
	poll          time.Duration
}

// NewGoroutineLeakDetector creates a detector bound to t.
func NewGoroutineLeakDetector(t testing.TB) *GoroutineLeakDetector {
	return &GoroutineLeakDetector{
		t:       t,
		timeout: 2 * time.Second,
		poll:    20 * time.Millisecond,
	}
}

// SetAllowedGrowth tolerates n extra goroutines, e.g. runtime or pipe
// helpers that outlive the code under test.
func (d *GoroutineLeakDetector) SetAllowedGrowth(n int) *GoroutineLeakDetector {
	d.allowedGrowth = n
	return d
}

// SetTimeout bounds how long Check waits for goroutines to exit.
func (d *GoroutineLeakDetector) SetTimeout(timeout time.Duration) *GoroutineLeakDetector {
	d.timeout = timeout
	return d
}

// Start records the baseline.
func (d *GoroutineLeakDetector) Start() {
	d.baseline = runtime.NumGoroutine()
}

// Check reports a leak when the count stays above the baseline plus the
// allowed growth for the whole timeout.
func (d *GoroutineLeakDetector) Check() {
	d.t.Helper()
	if n, ok := d.settle(); !ok {
		buf := make([]byte, 1<<20)
		buf = buf[:runtime.Stack(buf, true)]
		d.t.Errorf("goroutine leak: %d at start, %d after %s (allowed growth %d)\n%s",
			d.baseline, n, d.timeout, d.allowedGrowth, buf)
	}
}

func (d *GoroutineLeakDetector) settle() (int, bool) {
	deadline := time.Now().Add(d.timeout)
	for {
		n := runtime.NumGoroutine()
		if n-d.baseline <= d.allowedGrowth {
			return n, true
		}
		if time.Now().After(deadline) {
			return n, false
		}
		time.Sleep(d.poll)
	}
}
