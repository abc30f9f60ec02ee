package transport

import (
	"context"

	"github.com/ajitpratap0/mcp-userhub/pkg/logging"
	"github.com/ajitpratap0/mcp-userhub/pkg/observability"
)

// Middleware wraps a Channel to observe or alter the raw messages crossing
// it. Correlation stays in Conn, above every middleware.
type Middleware interface {
	Wrap(ch Channel) Channel
}

// MiddlewareFunc adapts a function to Middleware.
type MiddlewareFunc func(Channel) Channel

func (f MiddlewareFunc) Wrap(ch Channel) Channel {
	return f(ch)
}

// ChainMiddleware applies middleware so that the first one is outermost.
// Nil entries are skipped.
func ChainMiddleware(middleware ...Middleware) Middleware {
	return MiddlewareFunc(func(ch Channel) Channel {
		for i := len(middleware) - 1; i >= 0; i-- {
			if middleware[i] != nil {
				ch = middleware[i].Wrap(ch)
			}
		}
		return ch
	})
}

// tap calls onSend and onReceive around the wrapped channel's traffic.
type tap struct {
	next      Channel
	onSend    func(data []byte, err error)
	onReceive func(data []byte)
}

func (t *tap) Send(data []byte) error {
	err := t.next.Send(data)
	t.onSend(data, err)
	return err
}

func (t *tap) Run(ctx context.Context, handler MessageHandler) error {
	return t.next.Run(ctx, func(data []byte) {
		t.onReceive(data)
		handler(data)
	})
}

func (t *tap) Close() error {
	return t.next.Close()
}

// MessageMetrics counts messages and bytes in each direction. Failed sends
// are not counted.
func MessageMetrics(metrics *observability.Metrics) Middleware {
	if metrics == nil {
		return nil
	}
	return MiddlewareFunc(func(ch Channel) Channel {
		return &tap{
			next: ch,
			onSend: func(data []byte, err error) {
				if err == nil {
					metrics.RecordMessage("out", len(data))
				}
			},
			onReceive: func(data []byte) {
				metrics.RecordMessage("in", len(data))
			},
		}
	})
}

// maxLoggedPayload bounds the message text included in a wire log entry.
const maxLoggedPayload = 512

// MessageLogging logs every raw message at debug level. It costs nothing
// when the logger is above debug.
func MessageLogging(logger logging.Logger) Middleware {
	if logger == nil {
		return nil
	}
	logger = logger.WithFields(logging.Component("wire"))
	entry := func(direction string, data []byte) []logging.Field {
		payload := data
		truncated := len(payload) > maxLoggedPayload
		if truncated {
			payload = payload[:maxLoggedPayload]
		}
		return []logging.Field{
			logging.String("direction", direction),
			logging.Int("bytes", len(data)),
			logging.Bool("truncated", truncated),
			logging.String("payload", string(payload)),
		}
	}

	return MiddlewareFunc(func(ch Channel) Channel {
		return &tap{
			next: ch,
			onSend: func(data []byte, err error) {
				if logger.GetLevel() > logging.DebugLevel {
					return
				}
				if err != nil {
					logger.WithError(err).Debug("send failed", entry("out", data)...)
					return
				}
				logger.Debug("message", entry("out", data)...)
			},
			onReceive: func(data []byte) {
				if logger.GetLevel() > logging.DebugLevel {
					return
				}
				logger.Debug("message", entry("in", data)...)
			},
		}
	})
}
