package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	ctxlog "github.com/pagegraph/pagegraph/internal/ctxlog"
	eventbus "github.com/pagegraph/pagegraph/internal/eventbus"
	guillotine "github.com/pagegraph/pagegraph/internal/guillotine"
	metric "github.com/pagegraph/pagegraph/internal/metric"
	otel "github.com/pagegraph/pagegraph/internal/otel"
	registry "github.com/pagegraph/pagegraph/internal/registry"
	resolver "github.com/pagegraph/pagegraph/internal/resolver"
	server "github.com/pagegraph/pagegraph/internal/server"
)

const rootUsage = `pagegraph — guillotine content-resolution engine

USAGE:
  pagegraph <command> [flags]

COMMANDS:
  serve            Run the HTTP content-resolution server
  fetch            Resolve one content path and print the result as JSON
  help             Show help for any command
`

const serveUsage = `serve FLAGS:
  -guillotine.endpoint <url>   Graph API endpoint (required)
  -app.key <name>              Application key for config scoping, e.g. com.example.site
  -registry.manifest <file>    HCL registry manifest (pagegraph.hcl)
  -server.addr <addr>          HTTP listen address (default: :8080)
  -server.pretty               Pretty-print JSON responses
  -server.timeout <duration>   Per-request timeout, e.g. 10s (default: 10s)
  -server.cors-origin <origin> Allowed CORS origin. Repeatable
  -otel.endpoint <addr>        OTLP collector endpoint
  -otel.service <name>         OpenTelemetry service name (default: pagegraph)
  -log.debug                   Enable debug logging
`

const fetchUsage = `fetch FLAGS:
  -guillotine.endpoint <url>   Graph API endpoint (required)
  -app.key <name>              Application key for config scoping
  -registry.manifest <file>    HCL registry manifest (pagegraph.hcl)
  -path <content path>         Site-relative content path (required)
  -request.type <kind>         Request kind: page, type or component (default: page)
  -render.mode <mode>          Render mode signal (default: live)
  -component.path <path>       Target component path for component requests
  -pretty                      Pretty-print the result
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	global := flag.NewFlagSet("pagegraph", flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer)) // silence automatic output
	if err := global.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, rootUsage)
		return err
	}
	remaining := global.Args()
	if len(remaining) == 0 {
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := remaining[0]
	cmdArgs := remaining[1:]
	switch cmd {
	case "serve":
		return cmdServe(cmdArgs)
	case "fetch":
		return cmdFetch(cmdArgs)
	case "help":
		return cmdHelp(cmdArgs)
	default:
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string) error {
	if len(args) == 0 {
		fmt.Print(rootUsage)
		return nil
	}
	switch args[0] {
	case "serve":
		fmt.Print(serveUsage)
	case "fetch":
		fmt.Print(fetchUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

type stringListFlag []string

func (s *stringListFlag) String() string { return "" }

func (s *stringListFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func newResolver(ctx context.Context, endpoint, appKey, manifest string) (*resolver.Resolver, error) {
	reg := registry.New()
	if manifest != "" {
		if err := registry.LoadManifest(ctx, manifest, reg); err != nil {
			return nil, err
		}
	}
	reg.Freeze()
	client := guillotine.NewClient(endpoint)
	return resolver.New(client, reg, resolver.WithAppKey(appKey)), nil
}

func cmdServe(args []string) error {
	endpoint := ""
	appKey := ""
	manifest := ""
	addr := ":8080"
	pretty := false
	timeout := 10 * time.Second
	otelEndpoint := ""
	otelService := "pagegraph"
	debug := false
	var corsOrigins stringListFlag

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&endpoint, "guillotine.endpoint", endpoint, "Graph API endpoint")
	fs.StringVar(&appKey, "app.key", appKey, "Application key for config scoping")
	fs.StringVar(&manifest, "registry.manifest", manifest, "HCL registry manifest")
	fs.StringVar(&addr, "server.addr", addr, "HTTP listen address")
	fs.BoolVar(&pretty, "server.pretty", pretty, "Pretty-print JSON responses")
	fs.DurationVar(&timeout, "server.timeout", timeout, "Per-request timeout")
	fs.Var(&corsOrigins, "server.cors-origin", "Allowed CORS origin")
	fs.StringVar(&otelEndpoint, "otel.endpoint", otelEndpoint, "OTLP collector endpoint")
	fs.StringVar(&otelService, "otel.service", otelService, "OpenTelemetry service name")
	fs.BoolVar(&debug, "log.debug", debug, "Enable debug logging")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, serveUsage)
		return err
	}
	if endpoint == "" {
		fmt.Fprint(os.Stderr, serveUsage)
		return fmt.Errorf("-guillotine.endpoint is required")
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	ctx := ctxlog.WithLogger(context.Background(), logger)

	eventbus.Use(eventbus.New())
	shutdown, err := otel.Setup(otelEndpoint, otelService)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	metrics := metric.NewMetrics()
	metrics.Register()

	res, err := newResolver(ctx, endpoint, appKey, manifest)
	if err != nil {
		return err
	}

	var sopts []server.Option
	if pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if timeout > 0 {
		sopts = append(sopts, server.WithTimeout(timeout))
	}
	if len(corsOrigins) > 0 {
		sopts = append(sopts, server.WithCORS(corsOrigins...))
	}
	h := server.New(res, sopts...)

	mux := http.NewServeMux()
	mux.Handle("/content/", http.StripPrefix("/content", h))
	mux.Handle("/metrics", metrics.Handler())

	log.Printf("content server listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}

func cmdFetch(args []string) error {
	endpoint := ""
	appKey := ""
	manifest := ""
	path := ""
	requestType := "page"
	renderMode := "live"
	componentPath := ""
	pretty := false

	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&endpoint, "guillotine.endpoint", endpoint, "Graph API endpoint")
	fs.StringVar(&appKey, "app.key", appKey, "Application key for config scoping")
	fs.StringVar(&manifest, "registry.manifest", manifest, "HCL registry manifest")
	fs.StringVar(&path, "path", path, "Site-relative content path")
	fs.StringVar(&requestType, "request.type", requestType, "Request kind")
	fs.StringVar(&renderMode, "render.mode", renderMode, "Render mode signal")
	fs.StringVar(&componentPath, "component.path", componentPath, "Target component path")
	fs.BoolVar(&pretty, "pretty", pretty, "Pretty-print the result")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, fetchUsage)
		return err
	}
	if endpoint == "" || path == "" {
		fmt.Fprint(os.Stderr, fetchUsage)
		return fmt.Errorf("-guillotine.endpoint and -path are required")
	}

	ctx := context.Background()
	res, err := newResolver(ctx, endpoint, appKey, manifest)
	if err != nil {
		return err
	}
	result := res.FetchContent(ctx, path, registry.RequestContext{
		RequestType:   requestType,
		RenderMode:    renderMode,
		ComponentPath: componentPath,
	})

	enc := json.NewEncoder(os.Stdout)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(result)
}
