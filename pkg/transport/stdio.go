package transport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	mcperrors "github.com/ajitpratap0/mcp-userhub/pkg/errors"
)

// MessageHandler receives one complete inbound message. The slice is owned
// by the callee.
type MessageHandler func(data []byte)

// Channel is a duplex, ordered, message-oriented conduit. It knows nothing
// about correlation.
type Channel interface {
	// Send writes one message. Sends are serialized, so per-direction order
	// matches call order.
	Send(data []byte) error
	// Run delivers inbound messages to handler until the peer closes, ctx is
	// cancelled, or Close is called. A clean end of stream returns nil.
	Run(ctx context.Context, handler MessageHandler) error
	// Close stops Run and releases the underlying streams.
	Close() error
}

// DefaultMaxMessageSize bounds a single framed message.
const DefaultMaxMessageSize = 4 * 1024 * 1024

// StdioChannel frames messages as newline-terminated lines over a reader
// and a writer.
type StdioChannel struct {
	reader    io.Reader
	writer    io.Writer
	rawWriter *bufio.Writer
	mutex     sync.Mutex // protects rawWriter and closed
	closed    bool
	done      chan struct{}
	stopOnce  sync.Once

	maxMessageSize int
}

// NewStdioChannel creates a channel over arbitrary streams.
func NewStdioChannel(reader io.Reader, writer io.Writer) *StdioChannel {
	return &StdioChannel{
		reader:         reader,
		writer:         writer,
		rawWriter:      bufio.NewWriter(writer),
		done:           make(chan struct{}),
		maxMessageSize: DefaultMaxMessageSize,
	}
}

// NewStdio creates a channel over the process's own stdin and stdout.
func NewStdio() *StdioChannel {
	return NewStdioChannel(os.Stdin, os.Stdout)
}

// Run reads lines until EOF, cancellation or Close.
func (t *StdioChannel) Run(ctx context.Context, handler MessageHandler) error {
	g, gctx := errgroup.WithContext(ctx)

	scanner := bufio.NewScanner(t.reader)
	initial := 64 * 1024
	if t.maxMessageSize < initial {
		initial = t.maxMessageSize
	}
	scanner.Buffer(make([]byte, 0, initial), t.maxMessageSize)
	scannerDone := make(chan struct{})

	g.Go(func() error {
		defer close(scannerDone)

		for scanner.Scan() {
			select {
			case <-t.done:
				return nil
			default:
			}

			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			// The scanner reuses its buffer on the next Scan.
			data := make([]byte, len(line))
			copy(data, line)
			handler(data)
		}

		if err := scanner.Err(); err != nil {
			select {
			case <-t.done:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			return mcperrors.TransportError("stdio", "read", err)
		}
		return nil
	})

	// Closing the reader is the only way to unblock a pending Scan.
	g.Go(func() error {
		select {
		case <-gctx.Done():
			closeReader(t.reader)
			return gctx.Err()
		case <-t.done:
			closeReader(t.reader)
			return nil
		case <-scannerDone:
			return nil
		}
	})

	return g.Wait()
}

// Send writes data followed by a newline and flushes.
func (t *StdioChannel) Send(data []byte) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.closed {
		return mcperrors.ConnectionClosed("send", nil)
	}
	if bytes.IndexByte(data, '\n') >= 0 {
		return mcperrors.ProtocolError("message contains a raw newline")
	}

	if _, err := t.rawWriter.Write(data); err != nil {
		return mcperrors.TransportError("stdio", "write", err)
	}
	if err := t.rawWriter.WriteByte('\n'); err != nil {
		return mcperrors.TransportError("stdio", "write", err)
	}
	if err := t.rawWriter.Flush(); err != nil {
		return mcperrors.TransportError("stdio", "flush", err)
	}
	return nil
}

// Close flushes pending output and closes both streams when they are
// closable. Closing the writer is what lets the peer observe end of stream.
func (t *StdioChannel) Close() error {
	var flushErr error

	t.stopOnce.Do(func() {
		close(t.done)

		t.mutex.Lock()
		t.closed = true
		flushErr = t.rawWriter.Flush()
		if c, ok := t.writer.(io.Closer); ok {
			_ = c.Close()
		}
		t.mutex.Unlock()

		closeReader(t.reader)
	})

	if flushErr != nil && !errors.Is(flushErr, io.ErrClosedPipe) {
		return mcperrors.TransportError("stdio", "flush", flushErr)
	}
	return nil
}

func closeReader(r io.Reader) {
	if c, ok := r.(io.Closer); ok {
		_ = c.Close()
	}
}

// Pipe returns two channels connected back to back in memory.
func Pipe() (*StdioChannel, *StdioChannel) {
	aReader, bWriter := io.Pipe()
	bReader, aWriter := io.Pipe()
	return NewStdioChannel(aReader, aWriter), NewStdioChannel(bReader, bWriter)
}
