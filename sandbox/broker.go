package sandbox

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultDeadline bounds a run when the broker is not configured otherwise.
const DefaultDeadline = 5 * time.Second

// timeoutText is the fixed message of a synthesized timeout failure.
const timeoutText = "execution timeout"

// Broker spawns one fresh isolated execution context per run, posts a single
// Execute, and supervises the reply stream against the deadline. The broker
// does not serialize overlapping runs; every Start call owns an independent
// context.
type Broker struct {
	deadline time.Duration
	log      *zap.Logger
}

// Option configures a Broker.
type Option func(*Broker)

// WithDeadline sets the per-run execution deadline.
func WithDeadline(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.deadline = d
		}
	}
}

// WithLogger sets the broker's logger.
func WithLogger(log *zap.Logger) Option {
	return func(b *Broker) {
		if log != nil {
			b.log = log
		}
	}
}

// New creates a Broker.
func New(opts ...Option) *Broker {
	b := &Broker{
		deadline: DefaultDeadline,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run is one supervised execution: the session and its message stream. The
// stream carries Output messages in emission order followed by exactly one
// terminal message, then closes.
type Run struct {
	Session  *Session
	Messages <-chan Message
}

// Start creates a fresh context for the given executable text, posts the
// Execute message and arms the deadline. The context is torn down on the
// first terminal message or, failing that, when the deadline elapses.
func (b *Broker) Start(code string) (*Run, error) {
	iso, err := newIsolate(b.log)
	if err != nil {
		return nil, err
	}

	sess := newSession(time.Now().Add(b.deadline))
	if err := iso.Post(Message{Kind: KindExecute, Code: code}); err != nil {
		iso.Terminate()
		return nil, err
	}
	sess.start()

	out := make(chan Message, 16)
	go b.supervise(sess, iso, out)

	b.log.Debug("session started",
		zap.String("session", sess.ID().String()),
		zap.Time("deadline", sess.Deadline()))

	return &Run{Session: sess, Messages: out}, nil
}

// supervise forwards context frames until the terminal message or the
// deadline, whichever comes first. After the terminal outcome is decided,
// in-flight frames from the context are discarded.
func (b *Broker) supervise(sess *Session, iso *Isolate, out chan<- Message) {
	defer close(out)
	defer iso.Terminate()

	timer := time.NewTimer(time.Until(sess.Deadline()))
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			if sess.finish(StateTimedOut) {
				out <- Message{Kind: KindError, Text: timeoutText}
				b.log.Debug("session timed out", zap.String("session", sess.ID().String()))
			}
			return

		case frame, ok := <-iso.Frames():
			if !ok {
				// The context died without a terminal message.
				if sess.finish(StateFailed) {
					out <- Message{Kind: KindError, Text: "execution context terminated unexpectedly"}
				}
				return
			}
			m, err := Decode(frame)
			if err != nil {
				if sess.finish(StateFailed) {
					out <- Message{Kind: KindError, Text: err.Error()}
				}
				return
			}
			switch m.Kind {
			case KindOutput:
				out <- m
			case KindDone:
				if sess.finish(StateCompleted) {
					out <- m
				}
				return
			case KindError:
				if sess.finish(StateFailed) {
					out <- m
				}
				return
			default:
				// Execute flowing context→host is a protocol violation.
				if sess.finish(StateFailed) {
					out <- Message{Kind: KindError, Text: fmt.Sprintf("protocol: unexpected %s message", m.Kind)}
				}
				return
			}
		}
	}
}
