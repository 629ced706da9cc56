package modem_test

import (
	"log/slog"
	"testing"
	"time"

	"i4.energy/across/espgw/modem"
)

func TestConfig(t *testing.T) {
	t.Run("ErrNoDialer when no dialer provided", func(t *testing.T) {
		_, err := modem.NewConfigBuilder().Build()

		if err != modem.ErrNoDialer {
			t.Errorf("expected ErrNoDialer, got: %v", err)
		}
	})

	t.Run("Defaults", func(t *testing.T) {
		config, err := modem.NewConfigBuilder().
			WithDialer(modem.TCPDialer{Address: "esp-link:23"}).
			Build()
		if err != nil {
			t.Fatalf("unexpected error from Build(): %v", err)
		}

		if config.OpTimeout != 5*time.Second {
			t.Errorf("OpTimeout = %v, want 5s", config.OpTimeout)
		}
		if config.RxBufferSize != modem.DefaultBufferSize {
			t.Errorf("RxBufferSize = %d, want %d", config.RxBufferSize, modem.DefaultBufferSize)
		}
		if config.EventBuffer != 64 {
			t.Errorf("EventBuffer = %d, want 64", config.EventBuffer)
		}
		if config.Logger == nil {
			t.Error("expected a default logger")
		}
	})

	t.Run("Explicit values are kept", func(t *testing.T) {
		logger := slog.Default()
		config, err := modem.NewConfigBuilder().
			WithDialer(modem.SerialDialer{PortName: "/dev/ttyUSB0"}).
			WithAccessPoint("ssid", "pass").
			WithEcho(true).
			WithOpTimeout(time.Second).
			WithRxBufferSize(4096).
			WithEventBuffer(8).
			WithLinkReservation(true).
			WithLogger(logger).
			Build()
		if err != nil {
			t.Fatalf("unexpected error from Build(): %v", err)
		}

		want := modem.Config{
			Dialer:          modem.SerialDialer{PortName: "/dev/ttyUSB0"},
			APName:          "ssid",
			APPassword:      "pass",
			Echo:            true,
			OpTimeout:       time.Second,
			RxBufferSize:    4096,
			EventBuffer:     8,
			LinkReservation: true,
			Logger:          logger,
		}
		if config != want {
			t.Errorf("Build() = %+v, want %+v", config, want)
		}
	})
}
