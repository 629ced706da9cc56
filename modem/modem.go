package modem

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"i4.energy/across/espgw/at"
	"i4.energy/across/espgw/internal/syncutil"
)

const readChunkSize = 512

// Modem represents an ESP8266/ESP8285 WiFi modem attached over a Transport.
// It provides thread-safe access to the Handler through a single run loop
// that owns all transport I/O.
type Modem struct {
	transport Transport
	handler   *Handler
	loop      *Loop
	logger    *slog.Logger

	echo      bool
	opTimeout time.Duration

	// events is delivered to the application; full channel drops events
	events chan Event
	// requests queues operations for the run loop, unbuffered
	requests chan *opRequest

	// chunks carries transport reads from the single reader goroutine. It is
	// closed after the read that failed, which is kept in readErr.
	chunks   chan chunk
	readErr  error
	readOnce sync.Once

	mu          syncutil.Mutex
	closed      bool
	loopRunning bool

	loopCtx    context.Context
	loopCancel context.CancelFunc
}

// opRequest is an operation executed on the run loop goroutine.
type opRequest struct {
	name string
	fn   func(h *Handler) error
	done chan error
}

// chunk is one read from the transport.
type chunk struct {
	data []byte
	err  error
}

// New dials the modem and prepares the handler and drive loop. The
// handshake is not started until Start is called with Run active.
func New(ctx context.Context, config Config) (*Modem, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.setDefaults()

	transport, err := config.Dialer.Dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial modem: %w", err)
	}
	if transport == nil {
		return nil, ErrNotInitialized
	}

	logger := config.Logger
	opts := []HandlerOption{WithLogger(logger.With("component", "handler"))}
	if config.LinkReservation {
		opts = append(opts, WithLinkReservation())
	}
	h := NewHandler(transport, []byte(config.APName), []byte(config.APPassword), opts...)

	m := &Modem{
		transport: transport,
		handler:   h,
		loop:      NewLoop(h, config.RxBufferSize, logger.With("component", "loop")),
		logger:    logger.With("component", "modem"),
		echo:      config.Echo,
		opTimeout: config.OpTimeout,
		events:    make(chan Event, config.EventBuffer),
		requests:  make(chan *opRequest),
		chunks:    make(chan chunk),
	}
	m.loopCtx, m.loopCancel = context.WithCancel(context.Background())

	return m, nil
}

// Run is the event loop handling all transport I/O and handler access. It
// must be running for any operation to complete.
//
// Run returns io.EOF when the transport ends, nil after Close, ctx.Err()
// on cancellation and the handler's error when a command cannot be written.
//
// Run may be called again after it returned on cancellation. A single reader
// goroutine serves every call, so bytes arriving between two calls are fed
// by the next one. Once the transport failed, Run returns that error.
func (m *Modem) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrAlreadyClosed
	}
	if m.loopRunning {
		m.mu.Unlock()
		return ErrLoopRunning
	}
	m.loopRunning = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.loopRunning = false
		m.mu.Unlock()
	}()

	m.readOnce.Do(func() {
		go m.read()
	})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-m.loopCtx.Done():
			return nil

		case req := <-m.requests:
			err := req.fn(m.handler)
			if err != nil {
				m.logger.Debug("operation failed", "op", req.name, "error", err)
			}
			req.done <- err

		case c, ok := <-m.chunks:
			if !ok {
				if m.loopCtx.Err() != nil {
					return nil
				}
				return m.readFailure(m.readErr)
			}
			if len(c.data) > 0 {
				if err := m.loop.Feed(c.data, m.emit); err != nil {
					return err
				}
			}
			if c.err != nil {
				// Closing the transport unblocks the reader with an error.
				if m.loopCtx.Err() != nil {
					return nil
				}
				return m.readFailure(c.err)
			}
		}
	}
}

func (m *Modem) readFailure(err error) error {
	if errors.Is(err, io.EOF) {
		return io.EOF
	}
	return fmt.Errorf("read error: %w", err)
}

// read forwards transport reads to the run loop until a read fails or the
// modem is closed. It outlives individual Run calls.
func (m *Modem) read() {
	defer close(m.chunks)
	buf := make([]byte, readChunkSize)
	for {
		n, err := m.transport.Read(buf)
		if n == 0 && err == nil {
			if m.loopCtx.Err() != nil {
				return
			}
			continue
		}
		if err != nil {
			m.readErr = err
		}

		select {
		case m.chunks <- chunk{data: bytes.Clone(buf[:n]), err: err}:
		case <-m.loopCtx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

// Events returns the channel receiving handler events. Data payloads are
// copies owned by the receiver. Events are dropped with a warning when the
// channel is full.
func (m *Modem) Events() <-chan Event {
	return m.events
}

func (m *Modem) emit(ev Event) {
	if ev.Data != nil {
		ev.Data = bytes.Clone(ev.Data)
	}
	select {
	case m.events <- ev:
	default:
		m.logger.Warn("event channel full, dropping event", "event", ev.Type, "link", ev.Link)
	}
}

// Start begins the association handshake. Ready or an error event follows.
func (m *Modem) Start(ctx context.Context) error {
	return m.exec(ctx, "start", func(h *Handler) error {
		return h.Start(m.echo)
	})
}

// Connect opens a connection and returns its link id.
func (m *Modem) Connect(ctx context.Context, typ at.ConnectionType, host string, port uint16) (uint32, error) {
	var link uint32
	err := m.exec(ctx, "connect", func(h *Handler) error {
		var err error
		link, err = h.Connect(typ, []byte(host), port)
		return err
	})
	if err != nil {
		return 0, err
	}
	return link, nil
}

// Send transmits payload on link, replacing anything left in the send
// buffer.
func (m *Modem) Send(ctx context.Context, link uint32, payload []byte) error {
	if len(payload) > SendBufferSize {
		return ErrSendBufferFull
	}
	return m.exec(ctx, "send", func(h *Handler) error {
		if err := h.Reset(); err != nil {
			return err
		}
		if _, err := h.Write(payload); err != nil {
			return err
		}
		return h.Send(link)
	})
}

// Listen starts a server on port.
func (m *Modem) Listen(ctx context.Context, port uint16) error {
	return m.exec(ctx, "listen", func(h *Handler) error {
		return h.Listen(port)
	})
}

// Disconnect closes link.
func (m *Modem) Disconnect(ctx context.Context, link uint32) error {
	return m.exec(ctx, "disconnect", func(h *Handler) error {
		return h.Disconnect(link)
	})
}

// Status returns a snapshot of the handler state.
func (m *Modem) Status(ctx context.Context) (Snapshot, error) {
	var s Snapshot
	err := m.exec(ctx, "status", func(h *Handler) error {
		s = h.Snapshot()
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

// Close stops the run loop and closes the transport. A closed Modem cannot
// be reused.
func (m *Modem) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrAlreadyClosed
	}
	m.closed = true
	m.mu.Unlock()

	m.loopCancel()
	if m.transport != nil {
		return m.transport.Close()
	}
	return nil
}

// exec runs fn on the run loop goroutine and waits for its result.
func (m *Modem) exec(ctx context.Context, name string, fn func(h *Handler) error) error {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return ErrAlreadyClosed
	}
	if m.transport == nil {
		return ErrNotInitialized
	}

	if _, ok := ctx.Deadline(); !ok && m.opTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opTimeout)
		defer cancel()
	}

	req := &opRequest{
		name: name,
		fn:   fn,
		done: make(chan error, 1),
	}

	select {
	case m.requests <- req:
	case <-m.loopCtx.Done():
		return ErrAlreadyClosed
	case <-ctx.Done():
		return fmt.Errorf("%s cancelled before dispatch: %w", name, ctx.Err())
	}

	// The run loop answers right after executing fn.
	return <-req.done
}
