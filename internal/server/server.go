// Package server orchestrates all components: logging, NATS client, platform
// context, bridge, HTTP health and metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	comms "github.com/nats-io/nats.go"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/morezero/signal-bridge/internal/config"
	"github.com/morezero/signal-bridge/pkg/bridge"
	"github.com/morezero/signal-bridge/pkg/commsutil"
	"github.com/morezero/signal-bridge/pkg/events"
	"github.com/morezero/signal-bridge/pkg/manifest"
	"github.com/morezero/signal-bridge/pkg/metrics"
	"github.com/morezero/signal-bridge/pkg/platform"
	"github.com/morezero/signal-bridge/pkg/platform/linux"
	"github.com/morezero/signal-bridge/pkg/platform/static"
)

const logPrefix = "server:server"

// Server is the signal-bridge orchestrator.
type Server struct {
	cfg        *config.Config
	nc         *comms.Conn
	bridge     *bridge.Bridge
	metrics    *metrics.Metrics
	httpServer *http.Server
}

// HealthOutput is the /health response body.
type HealthOutput struct {
	Status    string       `json:"status"`
	Checks    HealthChecks `json:"checks"`
	Timestamp string       `json:"timestamp"`
}

// HealthChecks holds individual health check results.
type HealthChecks struct {
	COMMS    bool `json:"comms"`
	Attached bool `json:"attached"`
}

// Run loads configuration, serves until SIGINT/SIGTERM, then cleans up.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	closeLog := SetupLogging(cfg)
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return Serve(ctx, cfg)
}

// SetupLogging installs the default slog logger from LOG_LEVEL, writing to
// LOG_FILE through a rotating writer when set. The returned func closes the file.
func SetupLogging(cfg *config.Config) func() {
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var out io.Writer = os.Stdout
	closer := func() {}
	if cfg.LogFile != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			MaxAge:     cfg.LogMaxAgeDays,
			Compress:   true,
		}
		out = rotating
		closer = func() { rotating.Close() }
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: logLevel})))
	return closer
}

// OpenPlatform builds the platform context selected by PLATFORM_PROVIDER.
// The returned func releases it.
func OpenPlatform(cfg *config.Config) (platform.Context, func(), error) {
	switch cfg.Provider {
	case config.ProviderStatic:
		p, err := static.LoadFile(cfg.FixtureFile)
		if err != nil {
			return nil, nil, err
		}
		slog.Info(fmt.Sprintf("%s - Using static platform from %s", logPrefix, cfg.FixtureFile))
		return p, func() {}, nil
	case config.ProviderDBus:
		c, err := linux.Open(linux.Options{WifiInterface: cfg.WifiInterface})
		if err != nil {
			return nil, nil, err
		}
		return c, func() {
			if err := c.Close(); err != nil {
				slog.Warn(fmt.Sprintf("%s - closing system bus: %v", logPrefix, err))
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("%s - unknown platform provider %q", logPrefix, cfg.Provider)
	}
}

// Serve starts the bridge and blocks until ctx is done or the HTTP server fails.
func Serve(ctx context.Context, cfg *config.Config) error {
	if err := cfg.ValidateForServe(); err != nil {
		return err
	}
	slog.Info(fmt.Sprintf("%s - Starting signal-bridge", logPrefix))

	s := &Server{cfg: cfg, metrics: metrics.New()}

	// Step 1: Load manifest
	m, err := manifest.Load(cfg.ManifestFile)
	if err != nil {
		return fmt.Errorf("%s - failed to load manifest: %w", logPrefix, err)
	}

	subject := ChannelSubject(cfg, m)
	slog.Info(fmt.Sprintf("%s - Channel subject: %s", logPrefix, subject))

	// Step 2: Platform context
	pctx, closePlatform, err := OpenPlatform(cfg)
	if err != nil {
		return fmt.Errorf("%s - failed to open platform: %w", logPrefix, err)
	}
	defer closePlatform()

	// Step 3: Connect to NATS
	nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName)
	if err != nil {
		return fmt.Errorf("%s - failed to connect to NATS: %w", logPrefix, err)
	}
	s.nc = nc

	// Step 4: Attach the bridge
	b, err := bridge.Attach(nc, pctx, bridge.Options{
		Subject:        subject,
		RequestTimeout: cfg.RequestTimeout,
		Manifest:       m,
		Metrics:        s.metrics,
		Events:         events.NewCommsPublisher(nc),
	})
	if err != nil {
		nc.Close()
		return fmt.Errorf("%s - failed to attach bridge: %w", logPrefix, err)
	}
	s.bridge = b

	// Step 5: Start HTTP health server
	httpAddr := fmt.Sprintf(":%d", cfg.HTTPPort)
	ln, err := net.Listen("tcp", httpAddr)
	if err != nil {
		return errors.Join(fmt.Errorf("%s - failed to listen on %s: %w", logPrefix, httpAddr, err), s.shutdown())
	}
	s.httpServer = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	httpErr := make(chan error, 1)
	go func() {
		slog.Info(fmt.Sprintf("%s - HTTP health server listening on %s", logPrefix, ln.Addr()))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
	}()

	// Step 6: Reload static fixtures on SIGHUP
	if p, ok := pctx.(*static.Provider); ok {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		watchCtx, stopWatch := context.WithCancel(ctx)
		defer stopWatch()
		go watchFixture(watchCtx, p, cfg.FixtureFile, hup)
	}

	slog.Info(fmt.Sprintf("%s - signal-bridge is ready", logPrefix))

	select {
	case <-ctx.Done():
		slog.Info(fmt.Sprintf("%s - Shutting down: %v", logPrefix, context.Cause(ctx)))
		return s.shutdown()
	case err := <-httpErr:
		slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
		return errors.Join(fmt.Errorf("%s - http server: %w", logPrefix, err), s.shutdown())
	}
}

// ChannelSubject returns SIGNAL_SUBJECT when set, else the manifest's channel subject.
func ChannelSubject(cfg *config.Config, m *manifest.Manifest) string {
	if cfg.Subject != "" {
		return cfg.Subject
	}
	return m.ChannelSubject()
}

// watchFixture reloads the static provider from path on every signal until ctx is done.
func watchFixture(ctx context.Context, p *static.Provider, path string, sigs <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sigs:
			if err := p.Reload(path); err != nil {
				slog.Error(fmt.Sprintf("%s - fixture reload failed, keeping previous state: %v", logPrefix, err))
				continue
			}
			slog.Info(fmt.Sprintf("%s - Reloaded fixture %s", logPrefix, path))
		}
	}
}

func (s *Server) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.HealthCheckTimeout)
	defer cancel()

	var errs []error
	if err := s.bridge.Detach(); err != nil {
		errs = append(errs, err)
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("%s - http shutdown: %w", logPrefix, err))
		}
	}
	if err := s.nc.Drain(); err != nil {
		errs = append(errs, fmt.Errorf("%s - drain: %w", logPrefix, err))
	}

	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return errors.Join(errs...)
}

// Handler returns the HTTP mux: /health, /ready and /metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		h := s.Health()
		w.Header().Set("Content-Type", "application/json")
		if h.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(h)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	})
	mux.Handle("/metrics", s.metrics.Handler())
	return mux
}

// Health reports whether the channel is usable.
func (s *Server) Health() *HealthOutput {
	commsOk := s.nc != nil && s.nc.IsConnected()
	attached := s.bridge != nil && s.bridge.Attached()

	status := "healthy"
	if !commsOk || !attached {
		status = "unhealthy"
	}
	return &HealthOutput{
		Status:    status,
		Checks:    HealthChecks{COMMS: commsOk, Attached: attached},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
