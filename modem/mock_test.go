package modem_test

import (
	"context"

	gomock "go.uber.org/mock/gomock"

	"i4.energy/across/espgw/modem"
)

// MockSequenceBuilder scripts a MockTransport as a modem answering each
// command. The run loop reads from its own goroutine, so reads and writes
// are ordered separately and each reply is held back until its command was
// written.
type MockSequenceBuilder struct {
	transport *modem.MockTransport
	writes    []any
	reads     []any
}

func NewMockSequence(transport *modem.MockTransport) *MockSequenceBuilder {
	return &MockSequenceBuilder{
		transport: transport,
	}
}

// Reply expects cmd to be written and answers it with reply.
func (b *MockSequenceBuilder) Reply(cmd, reply string) *MockSequenceBuilder {
	written := make(chan struct{})
	b.writes = append(b.writes,
		b.transport.EXPECT().Write([]byte(cmd)).DoAndReturn(func(p []byte) (int, error) {
			close(written)
			return len(p), nil
		}),
	)
	b.reads = append(b.reads,
		b.transport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
			<-written
			return copy(p, reply), nil
		}),
	)
	return b
}

func (b *MockSequenceBuilder) Handshake(ssid, password string) *MockSequenceBuilder {
	return b.
		Reply("ATE0\r\n", "ATE0\r\n\r\nOK\r\n").
		Reply("AT+CWMODE_CUR=1\r\n", "\r\nOK\r\n").
		Reply(`AT+CWJAP_CUR="`+ssid+`","`+password+`"`+"\r\n", "WIFI CONNECTED\r\nWIFI GOT IP\r\n\r\nOK\r\n").
		Reply("AT+CIFSR\r\n", "+CIFSR:STAIP,\"192.168.0.20\"\r\n+CIFSR:STAMAC,\"18:fe:34:aa:bb:cc\"\r\n\r\nOK\r\n").
		Reply("AT+CIPMUX=1\r\n", "\r\nOK\r\n")
}

// Idle blocks the next read until ctx is done.
func (b *MockSequenceBuilder) Idle(ctx context.Context) *MockSequenceBuilder {
	b.reads = append(b.reads,
		b.transport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		}),
	)
	return b
}

// Build orders the scripted calls.
func (b *MockSequenceBuilder) Build() {
	gomock.InOrder(b.writes...)
	gomock.InOrder(b.reads...)
}
