package modem

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"

	"i4.energy/across/espgw/at"
)

// DefaultBufferSize holds a full send-size +IPD frame plus headroom for the
// status lines around it.
const DefaultBufferSize = SendBufferSize + 512

// Loop accumulates bytes received from the modem, scans them into frames and
// dispatches each frame to a Handler in arrival order.
type Loop struct {
	h      *Handler
	logger *slog.Logger
	buf    []byte
	n      int
}

// NewLoop creates a drive loop for h with a receive buffer of size bytes.
// A size of zero or less selects DefaultBufferSize.
func NewLoop(h *Handler, size int, logger *slog.Logger) *Loop {
	if size <= 0 {
		size = DefaultBufferSize
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loop{
		h:      h,
		logger: logger,
		buf:    make([]byte, size),
	}
}

// Feed appends p to the receive buffer and dispatches every complete frame.
// Chunks larger than the free space are consumed in several steps.
//
// Feed stops at the first error returned by the handler. Bytes of p that
// were not buffered by then are dropped.
func (l *Loop) Feed(p []byte, emit func(Event)) error {
	for len(p) > 0 {
		k := copy(l.buf[l.n:], p)
		l.n += k
		p = p[k:]
		if err := l.drain(emit); err != nil {
			return err
		}
	}
	return nil
}

// Run reads from r into the receive buffer until ctx is done or r fails.
// Zero-byte reads, as produced by serial read timeouts, are retried.
func (l *Loop) Run(ctx context.Context, r io.Reader, emit func(Event)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(l.buf[l.n:])
		if n > 0 {
			l.n += n
			if herr := l.drain(emit); herr != nil {
				return herr
			}
		}
		if err != nil {
			return err
		}
	}
}

// Pending returns the number of buffered bytes not yet forming a frame.
func (l *Loop) Pending() int {
	return l.n
}

func (l *Loop) drain(emit func(Event)) error {
	off := 0
	var err error

scan:
	for off < l.n {
		adv, resp, serr := at.Scan(l.buf[off:l.n])
		switch {
		case serr == nil:
			off += adv
			if err = l.h.Message(resp, emit); err != nil {
				break scan
			}
		case errors.Is(serr, at.ErrIncomplete):
			break scan
		default:
			i := bytes.IndexByte(l.buf[off:l.n], '\n')
			if i < 0 {
				break scan
			}
			l.logger.Debug("skipping unparseable line", "line", string(l.buf[off:off+i+1]))
			off += i + 1
		}
	}

	l.n = copy(l.buf, l.buf[off:l.n])
	if err == nil && l.n == len(l.buf) {
		l.logger.Warn("receive buffer full, discarding", "bytes", l.n)
		l.n = 0
	}
	return err
}
