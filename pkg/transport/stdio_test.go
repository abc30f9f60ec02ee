package transport

import (
	"context"
	"io"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcperrors "github.com/ajitpratap0/mcp-userhub/pkg/errors"
)

type collector struct {
	mu    sync.Mutex
	lines []string
	got   chan string
}

func newCollector() *collector {
	return &collector{got: make(chan string, 16)}
}

func (c *collector) handle(data []byte) {
	c.mu.Lock()
	c.lines = append(c.lines, string(data))
	c.mu.Unlock()
	c.got <- string(data)
}

func (c *collector) next(t *testing.T) string {
	t.Helper()
	select {
	case line := <-c.got:
		return line
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a message")
		return ""
	}
}

func TestStdioChannel_PipeDeliversInOrder(t *testing.T) {
	a, b := Pipe()
	defer a.Close()
	defer b.Close()

	col := newCollector()
	go func() { _ = b.Run(context.Background(), col.handle) }()

	require.NoError(t, a.Send([]byte(`{"n":1}`)))
	require.NoError(t, a.Send([]byte(`{"n":2}`)))

	assert.Equal(t, `{"n":1}`, col.next(t))
	assert.Equal(t, `{"n":2}`, col.next(t))
}

func TestStdioChannel_SkipsBlankLines(t *testing.T) {
	ch := NewStdioChannel(strings.NewReader("first\n\n   \nsecond\n"), io.Discard)
	col := newCollector()

	err := ch.Run(context.Background(), col.handle)

	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, col.lines)
}

func TestStdioChannel_SendRejectsRawNewline(t *testing.T) {
	ch := NewStdioChannel(strings.NewReader(""), io.Discard)

	err := ch.Send([]byte("{\n}"))

	assert.True(t, mcperrors.IsCategory(err, mcperrors.CategoryProtocol))
}

func TestStdioChannel_SendAfterClose(t *testing.T) {
	a, b := Pipe()
	defer b.Close()
	require.NoError(t, a.Close())

	err := a.Send([]byte(`{}`))

	assert.ErrorIs(t, err, mcperrors.ErrConnectionClosed)
}

func TestStdioChannel_PeerCloseEndsRun(t *testing.T) {
	a, b := Pipe()
	defer b.Close()

	done := make(chan error, 1)
	go func() { done <- b.Run(context.Background(), func([]byte) {}) }()

	require.NoError(t, a.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the peer closed")
	}
}

func TestStdioChannel_CancelEndsRun(t *testing.T) {
	a, b := Pipe()
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx, func([]byte) {}) }()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestStdioChannel_OversizedMessageIsTransportError(t *testing.T) {
	ch := NewStdioChannel(strings.NewReader(strings.Repeat("x", 128)+"\n"), io.Discard)
	ch.maxMessageSize = 32

	err := ch.Run(context.Background(), func([]byte) {})

	assert.True(t, mcperrors.IsFatal(err))
}

func TestProcess_EchoesThroughChild(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}

	p, err := StartProcess(context.Background(), "cat", nil)
	require.NoError(t, err)
	assert.Greater(t, p.Pid(), 0)

	col := newCollector()
	runDone := make(chan error, 1)
	go func() { runDone <- p.Run(context.Background(), col.handle) }()

	require.NoError(t, p.Send([]byte(`{"jsonrpc":"2.0","method":"ping"}`)))
	assert.Equal(t, `{"jsonrpc":"2.0","method":"ping"}`, col.next(t))

	require.NoError(t, p.Close())
	select {
	case <-p.Exited():
	case <-time.After(5 * time.Second):
		t.Fatal("child did not exit")
	}
	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}
}

func TestStartProcess_MissingBinary(t *testing.T) {
	_, err := StartProcess(context.Background(), "definitely-not-a-real-binary-xyz", nil)

	assert.True(t, mcperrors.IsFatal(err))
}
