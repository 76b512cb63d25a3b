// Command webchannel-inspect connects to a QWebChannel host, lists the objects
// it publishes and optionally calls a method or watches a signal.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/luciancaetano/webchannel/internal/config"
	"github.com/luciancaetano/webchannel/internal/observability"
	"github.com/luciancaetano/webchannel/internal/session"
	"github.com/luciancaetano/webchannel/stream"
	"github.com/luciancaetano/webchannel/ws"
)

type options struct {
	configPath string
	url        string
	address    string
	invoke     string
	args       string
	watch      string
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "webchannel-inspect: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, argv []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(argv, stderr)
	if err != nil {
		return err
	}
	cfg, err := resolveConfig(opts)
	if err != nil {
		return err
	}

	level, _ := observability.ParseLevel(cfg.LogLevel)
	logger := observability.NewLogger("webchannel-inspect", stderr).Level(observability.LevelFromEnv(level))

	if cfg.MetricsAddr != "" {
		shutdown := serveMetrics(cfg.MetricsAddr, logger)
		defer shutdown()
	}

	s, err := connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close(context.Background())

	readyCtx, cancel := context.WithTimeout(ctx, cfg.ReadyTimeout)
	defer cancel()
	if err := s.WaitReady(readyCtx); err != nil {
		return fmt.Errorf("wait for objects: %w", err)
	}

	if err := describe(stdout, s.Objects()); err != nil {
		return err
	}

	if opts.invoke != "" {
		if err := invoke(ctx, stdout, s, opts.invoke, opts.args); err != nil {
			return err
		}
	}
	if opts.watch != "" {
		return watch(ctx, stdout, s, opts.watch)
	}
	return nil
}

func parseFlags(argv []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("webchannel-inspect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "path to a TOML client config")
	fs.StringVar(&opts.url, "url", "", "WebSocket URL of the host")
	fs.StringVar(&opts.address, "addr", "", "TCP address of the host, selects the tcp transport")
	fs.StringVar(&opts.invoke, "invoke", "", "method to call as object.method")
	fs.StringVar(&opts.args, "args", "[]", "JSON array of arguments for -invoke")
	fs.StringVar(&opts.watch, "watch", "", "signal to print as object.signal until interrupted")
	fs.StringVar(&opts.logLevel, "log-level", "", "log level (trace, debug, info, warn, error, off)")
	if err := fs.Parse(argv); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return opts, nil
}

// resolveConfig layers flags over the config file over the defaults.
func resolveConfig(opts options) (config.ClientConfig, error) {
	cfg := config.DefaultClientConfig()
	if opts.configPath != "" {
		loaded, err := config.LoadClientConfig(opts.configPath)
		if err != nil {
			return config.ClientConfig{}, err
		}
		cfg = loaded
	}

	if opts.url != "" {
		cfg.Transport = config.TransportWebSocket
		cfg.URL = opts.url
	}
	if opts.address != "" {
		cfg.Transport = config.TransportTCP
		cfg.Address = opts.address
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return config.ClientConfig{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func connect(ctx context.Context, cfg config.ClientConfig, logger zerolog.Logger) (*session.Session, error) {
	if cfg.Transport == config.TransportTCP {
		dialCtx := ctx
		if cfg.HandshakeTimeout > 0 {
			var cancel context.CancelFunc
			dialCtx, cancel = context.WithTimeout(ctx, cfg.HandshakeTimeout)
			defer cancel()
		}
		return stream.Dial(dialCtx, "tcp", cfg.Address, stream.WithLogger(logger))
	}
	return ws.Dial(ctx, cfg.WebSocket(), ws.WithLogger(logger))
}

func serveMetrics(addr string, logger zerolog.Logger) func() {
	observability.RegisterMetrics()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
		}
	}()
	logger.Info().Str("addr", addr).Msg("serving metrics")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func describe(w io.Writer, objects []*ws.Object) error {
	sort.Slice(objects, func(i, j int) bool { return objects[i].ID() < objects[j].ID() })

	for _, obj := range objects {
		fmt.Fprintf(w, "%s\n", obj.ID())
		for _, name := range obj.Methods() {
			fmt.Fprintf(w, "  method   %s\n", name)
		}
		for _, name := range obj.Properties() {
			value, _ := obj.Property(name)
			fmt.Fprintf(w, "  property %s = %s\n", name, render(value))
		}
		for _, name := range obj.Signals() {
			fmt.Fprintf(w, "  signal   %s\n", name)
		}

		enums := obj.Enums()
		names := make([]string, 0, len(enums))
		for name := range enums {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "  enum     %s %s\n", name, render(enums[name]))
		}
	}
	return nil
}

// render prints v as JSON, falling back to the object id for references.
func render(v any) string {
	if obj, ok := v.(*ws.Object); ok {
		return "<" + obj.ID() + ">"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func splitTarget(target string) (string, string, error) {
	idx := strings.LastIndex(target, ".")
	if idx <= 0 || idx == len(target)-1 {
		return "", "", fmt.Errorf("target %q is not object.member", target)
	}
	return target[:idx], target[idx+1:], nil
}

func lookup(s *session.Session, id string) (*ws.Object, error) {
	obj, ok := s.Object(id)
	if !ok {
		return nil, fmt.Errorf("object %q is not published", id)
	}
	return obj, nil
}

func invoke(ctx context.Context, w io.Writer, s *session.Session, target, rawArgs string) error {
	id, method, err := splitTarget(target)
	if err != nil {
		return err
	}
	var args []any
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return fmt.Errorf("parse -args: %w", err)
	}
	obj, err := lookup(s, id)
	if err != nil {
		return err
	}

	result, err := obj.Call(ctx, method, args...)
	if err != nil {
		return fmt.Errorf("invoke %s: %w", target, err)
	}
	fmt.Fprintf(w, "%s -> %s\n", target, render(result))
	return nil
}

func watch(ctx context.Context, w io.Writer, s *session.Session, target string) error {
	id, name, err := splitTarget(target)
	if err != nil {
		return err
	}
	obj, err := lookup(s, id)
	if err != nil {
		return err
	}

	conn, err := obj.Connect(name, func(args ...any) {
		parts := make([]string, len(args))
		for i, arg := range args {
			parts[i] = render(arg)
		}
		fmt.Fprintf(w, "%s(%s)\n", target, strings.Join(parts, ", "))
	})
	if err != nil {
		return fmt.Errorf("watch %s: %w", target, err)
	}
	defer obj.Disconnect(conn)

	select {
	case <-ctx.Done():
		return nil
	case <-s.Done():
		return s.Err()
	}
}
