package modem

import (
	"log/slog"
	"time"
)

// Config holds the settings of a Modem. Zero values select defaults.
type Config struct {
	Dialer     Dialer
	APName     string
	APPassword string
	// Echo keeps command echo enabled by starting with AT instead of ATE0
	Echo bool
	// OpTimeout bounds waiting for the run loop to accept an operation
	OpTimeout time.Duration
	// RxBufferSize is the drive loop buffer size
	RxBufferSize int
	// EventBuffer is the capacity of the Events channel
	EventBuffer     int
	LinkReservation bool
	Logger          *slog.Logger
}

func (c *Config) validate() error {
	if c.Dialer == nil {
		return ErrNoDialer
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.OpTimeout == 0 {
		c.OpTimeout = 5 * time.Second
	}
	if c.RxBufferSize <= 0 {
		c.RxBufferSize = DefaultBufferSize
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = 64
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
}

// ConfigBuilder assembles a Config.
type ConfigBuilder struct {
	config Config
}

func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.Dialer = d
	return b
}

func (b *ConfigBuilder) WithAccessPoint(ssid, password string) *ConfigBuilder {
	b.config.APName = ssid
	b.config.APPassword = password
	return b
}

func (b *ConfigBuilder) WithEcho(echo bool) *ConfigBuilder {
	b.config.Echo = echo
	return b
}

func (b *ConfigBuilder) WithOpTimeout(d time.Duration) *ConfigBuilder {
	b.config.OpTimeout = d
	return b
}

func (b *ConfigBuilder) WithRxBufferSize(n int) *ConfigBuilder {
	b.config.RxBufferSize = n
	return b
}

func (b *ConfigBuilder) WithEventBuffer(n int) *ConfigBuilder {
	b.config.EventBuffer = n
	return b
}

func (b *ConfigBuilder) WithLinkReservation(reserve bool) *ConfigBuilder {
	b.config.LinkReservation = reserve
	return b
}

func (b *ConfigBuilder) WithLogger(logger *slog.Logger) *ConfigBuilder {
	b.config.Logger = logger
	return b
}

// Build validates the configuration and fills in defaults.
func (b *ConfigBuilder) Build() (Config, error) {
	c := b.config
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	c.setDefaults()
	return c, nil
}
