// Package handoff hands a record's trace to an external viewer running in a
// companion window. The viewer is probed with PING until it answers PONG,
// then receives the trace in a single message.
package handoff

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethpandaops/reportoor/pkg/artifact"
	"github.com/sirupsen/logrus"
)

// Protocol messages.
const (
	Ping = "PING"
	Pong = "PONG"
)

// DefaultInterval is the delay between two probes.
const DefaultInterval = 100 * time.Millisecond

// State is the progress of a handshake.
type State int

const (
	Opening State = iota
	AwaitingAck
	Transferring
	Done
	Abandoned
)

var stateNames = map[State]string{
	Opening:      "opening",
	AwaitingAck:  "awaiting_ack",
	Transferring: "transferring",
	Done:         "done",
	Abandoned:    "abandoned",
}

func (s State) String() string {
	return stateNames[s]
}

// Payload carries the trace to the viewer.
type Payload struct {
	Buffer   []byte `json:"buffer"`
	Title    string `json:"title"`
	FileName string `json:"fileName"`
}

// Message is the envelope the viewer expects the payload in.
type Message struct {
	Perfetto Payload `json:"perfetto"`
}

// NewPayload builds the payload for a record's trace.
func NewPayload(name, tracePath string, buf []byte) Payload {
	return Payload{
		Buffer:   buf,
		Title:    "Trace of " + name,
		FileName: artifact.BaseName(tracePath),
	}
}

// Window is an open companion window.
type Window interface {
	// Post sends a message to the window.
	Post(ctx context.Context, msg any) error
	// Messages delivers what the window sends back. It is closed when the
	// window goes away.
	Messages() <-chan any
}

// Opener opens the companion window. A nil Window with a nil error means
// the window could not be opened.
type Opener interface {
	Open(ctx context.Context) (Window, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context) (Window, error)

// Open implements Opener.
func (f OpenerFunc) Open(ctx context.Context) (Window, error) { return f(ctx) }

// Clock schedules the probes.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// FetchFunc loads a file of the run. A nil buffer with a nil error means
// the file does not exist.
type FetchFunc func(ctx context.Context, path string) ([]byte, error)

// Options tunes a Handshake.
type Options struct {
	// Interval between probes, DefaultInterval when zero.
	Interval time.Duration
	// Timeout gives up waiting for the acknowledgment. Zero waits until the
	// context is cancelled.
	Timeout time.Duration
	Clock   Clock
	// OnState is called on every state change.
	OnState func(State)
}

// Handshake runs the handoff of one trace.
type Handshake struct {
	log       logrus.FieldLogger
	opener    Opener
	clock     Clock
	interval  time.Duration
	maxProbes int
	onState   func(State)

	mu    sync.Mutex
	state State
}

// New creates a handshake that opens its window through opener.
func New(log logrus.FieldLogger, opener Opener, opts Options) *Handshake {
	h := &Handshake{
		log:      log.WithField("component", "handoff"),
		opener:   opener,
		clock:    opts.Clock,
		interval: opts.Interval,
		onState:  opts.OnState,
	}

	if h.clock == nil {
		h.clock = realClock{}
	}

	if h.interval <= 0 {
		h.interval = DefaultInterval
	}

	if opts.Timeout > 0 {
		h.maxProbes = int((opts.Timeout + h.interval - 1) / h.interval)
	}

	return h
}

// State returns the current state.
func (h *Handshake) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.state
}

func (h *Handshake) set(s State) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()

	if h.onState != nil {
		h.onState(s)
	}
}

type fetchResult struct {
	buf []byte
	err error
}

var (
	errNoWindow = errors.New("window not opened")
	errClosed   = errors.New("window closed")
	errNoAck    = errors.New("no acknowledgment before timeout")
	errNoTrace  = errors.New("trace not found")
)

// Run hands the trace of the named record to a new window and returns the
// final state, Done or Abandoned. Failures abandon the handoff without an
// error; they are only logged.
func (h *Handshake) Run(ctx context.Context, name string, fetch FetchFunc) State {
	h.set(Opening)

	tracePath := artifact.TracePath(name)
	log := h.log.WithField("record", name)

	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	fetched := make(chan fetchResult, 1)

	go func() {
		buf, err := fetch(fetchCtx, tracePath)
		fetched <- fetchResult{buf: buf, err: err}
	}()

	win, err := h.opener.Open(ctx)
	if err == nil && win == nil {
		err = errNoWindow
	}

	if err != nil {
		return h.abandon(log, err)
	}

	h.set(AwaitingAck)

	if err := h.awaitAck(ctx, win); err != nil {
		return h.abandon(log, err)
	}

	h.set(Transferring)

	var res fetchResult

	select {
	case <-ctx.Done():
		return h.abandon(log, ctx.Err())
	case res = <-fetched:
	}

	if res.err == nil && res.buf == nil {
		res.err = errNoTrace
	}

	if res.err != nil {
		return h.abandon(log, res.err)
	}

	msg := Message{Perfetto: NewPayload(name, tracePath, res.buf)}
	if err := win.Post(ctx, msg); err != nil {
		return h.abandon(log, err)
	}

	log.WithField("bytes", len(res.buf)).Debug("Trace handed off")
	h.set(Done)

	return Done
}

// awaitAck probes the window until it answers.
func (h *Handshake) awaitAck(ctx context.Context, win Window) error {
	for probes := 0; h.maxProbes == 0 || probes < h.maxProbes; probes++ {
		if err := win.Post(ctx, Ping); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.clock.After(h.interval):
		}

		acked, err := drain(win.Messages())
		if err != nil {
			return err
		}

		if acked {
			return nil
		}
	}

	return errNoAck
}

// drain consumes pending messages and reports whether a PONG was among
// them.
func drain(msgs <-chan any) (bool, error) {
	acked := false

	for {
		select {
		case m, ok := <-msgs:
			if !ok {
				if acked {
					return true, nil
				}

				return false, errClosed
			}

			if s, isString := m.(string); isString && s == Pong {
				acked = true
			}
		default:
			return acked, nil
		}
	}
}

func (h *Handshake) abandon(log logrus.FieldLogger, err error) State {
	log.WithError(err).Debug("Trace handoff abandoned")
	h.set(Abandoned)

	return Abandoned
}
