package at

import (
	"bufio"
	"bytes"
	"errors"
)

// Splitter is used for tokenizing modem output into frames. It uses the
// signature of bufio.SplitFunc so it can be directly used with bufio.Scanner.
//
// Each token holds the exact bytes of one frame as recognized by Scan,
// including its CRLF, so a +IPD payload containing line breaks stays in one
// token. Input that cannot start a frame is skipped up to and including the
// next newline.
//
// The atEOF parameter indicates whether any more data will be available.
// When true, any remaining data is returned as the final token.
//
// The modem package feeds Scan directly. Splitter is for callers outside it
// that read captured or live modem output through a bufio.Scanner.
func Splitter(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	n, _, err := Scan(data)
	switch {
	case err == nil:
		return n, data[:n], nil
	case errors.Is(err, ErrUnparseable):
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			return i + 1, nil, nil
		}
	}

	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

var _ bufio.SplitFunc = Splitter
