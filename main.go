package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.bug.st/serial"

	"i4.energy/across/espgw/modem"
)

func main() {
	configFile := flag.String("config", "", "Path to a YAML or TOML configuration file")
	flag.String("serial-port", "/dev/ttyUSB0", "Serial port to connect to the modem")
	flag.Int("baud-rate", 115200, "Baud rate for serial communication")
	flag.String("tcp-address", "", "Serial-to-TCP bridge address, used instead of the serial port when set")
	flag.String("bind-address", "0.0.0.0:8080", "Bind address for the HTTP server")
	flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.String("ap-name", "", "SSID of the access point to join")
	flag.String("ap-password", "", "Access point passphrase")
	flag.Bool("echo", false, "Keep command echo enabled on the modem")
	flag.Bool("link-reservation", false, "Claim link ids when a connection is requested")
	flag.Parse()

	config, err := LoadConfig(WithDefaults(), WithFile(*configFile), WithEnv(), WithFlags(flag.CommandLine))
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	var dialer modem.Dialer = modem.SerialDialer{
		PortName: config.SerialPort,
		Mode: &serial.Mode{
			BaudRate: config.BaudRate,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		},
	}
	if config.TCPAddress != "" {
		dialer = modem.TCPDialer{Address: config.TCPAddress, Timeout: 10 * time.Second}
	}

	modemConfig, err := modem.NewConfigBuilder().
		WithDialer(dialer).
		WithAccessPoint(config.APName, config.APPassword).
		WithEcho(config.Echo).
		WithLinkReservation(config.LinkReservation).
		WithOpTimeout(5 * time.Second).
		WithLogger(logger).
		Build()
	if err != nil {
		logger.Error("Failed to create modem config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m, err := modem.New(ctx, modemConfig)
	if err != nil {
		logger.Error("Failed to create modem", "error", err)
		os.Exit(1)
	}

	logger.Info("Starting ESP gateway", "serial_port", config.SerialPort, "tcp_address", config.TCPAddress)

	loopDone := make(chan error, 1)
	go func() {
		loopDone <- m.Run(ctx)
	}()

	go logEvents(logger.With("component", "events"), m.Events())

	if err := m.Start(ctx); err != nil {
		logger.Error("Failed to start modem handshake", "error", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr: config.BindAddress,
		Handler: &Server{
			Logger: logger.With("component", "server"),
			Modem:  m,
		},
	}

	// Start HTTP server in a goroutine
	go func() {
		logger.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-loopDone:
		if err != nil && !errors.Is(err, io.EOF) {
			logger.Error("Modem loop failed", "error", err)
		} else {
			logger.Warn("Modem connection ended")
		}
	}

	logger.Info("Closing modem connection")
	if err := m.Close(); err != nil {
		logger.Error("Failed to close modem", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("Closing HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to gracefully shutdown server", "error", err)
		os.Exit(1)
	}
}

// logEvents reports modem events until the channel is abandoned
func logEvents(logger *slog.Logger, events <-chan modem.Event) {
	for ev := range events {
		switch ev.Type {
		case modem.EvData:
			logger.Info("Data received", "link", ev.Link, "bytes", len(ev.Data))
		case modem.EvListenSuccess:
			logger.Info("Listening", "ip", ev.IP, "port", ev.Port)
		case modem.EvListenFailed:
			logger.Warn("Listen failed", "port", ev.Port)
		case modem.EvError, modem.EvInitError:
			logger.Error("Modem handshake failed", "event", ev.Type)
		case modem.EvConnectionFailed, modem.EvSendFailed, modem.EvDisconnectFailed:
			logger.Warn("Operation failed", "event", ev.Type, "link", ev.Link)
		default:
			logger.Info("Modem event", "event", ev.Type, "link", ev.Link)
		}
	}
}
