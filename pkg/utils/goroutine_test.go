package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGoroutineLeakDetector_WaitsForExit(t *testing.T) {
	d := NewGoroutineLeakDetector(t)
	d.Start()

	done := make(chan struct{})
	go func() {
		time.Sleep(50 * time.Millisecond)
		close(done)
	}()

	d.Check()
	<-done
}

func TestGoroutineLeakDetector_ReportsLeak(t *testing.T) {
	stop := make(chan struct{})
	defer close(stop)

	d := NewGoroutineLeakDetector(t).SetTimeout(100 * time.Millisecond)
	d.Start()
	go func() { <-stop }()

	n, ok := d.settle()

	assert.False(t, ok)
	assert.Greater(t, n, d.baseline)
}

func TestGoroutineLeakDetector_AllowedGrowth(t *testing.T) {
	stop := make(chan struct{})
	defer close(stop)

	d := NewGoroutineLeakDetector(t).SetAllowedGrowth(1).SetTimeout(100 * time.Millisecond)
	d.Start()
	go func() { <-stop }()

	_, ok := d.settle()

	assert.True(t, ok)
}
