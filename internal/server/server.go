package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	ctxlog "github.com/pagegraph/pagegraph/internal/ctxlog"
	eventbus "github.com/pagegraph/pagegraph/internal/eventbus"
	events "github.com/pagegraph/pagegraph/internal/events"
	registry "github.com/pagegraph/pagegraph/internal/registry"
	reqid "github.com/pagegraph/pagegraph/internal/reqid"
	resolver "github.com/pagegraph/pagegraph/internal/resolver"
)

// Request classification headers. They are externally supplied signals; the
// handler forwards them without computing anything.
const (
	HeaderRequestType   = "Xp-Request-Type"
	HeaderRenderMode    = "Xp-Render-Mode"
	HeaderComponentPath = "Xp-Component-Path"
)

// Handler is an http.Handler that resolves content paths and writes the
// FetchContentResult as JSON.
type Handler struct {
	res *resolver.Resolver
	opt Options
}

type Options struct {
	// Timeout sets a default timeout if the incoming request context has none.
	// 0 means no default timeout.
	Timeout time.Duration

	// Pretty enables indented JSON responses (useful for dev).
	Pretty bool

	// MaxBodyBytes limits the size of POST bodies. 0 means unlimited.
	MaxBodyBytes int64

	// CORS configuration. If AllowedOrigins is empty, CORS is disabled.
	CORS CORSOptions
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}

// CORSOptions holds simple CORS settings.
type CORSOptions struct {
	AllowedOrigins []string
}

// New creates the content-resolution HTTP handler.
func New(res *resolver.Resolver, opts ...Option) *Handler {
	op := Options{Timeout: 10 * time.Second}
	for _, f := range opts {
		f(&op)
	}
	return &Handler{res: res, opt: op}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}

	ctx, rid := reqid.NewContext(ctx)
	ctx = ctxlog.WithLogger(ctx, ctxlog.FromContext(ctx).With("request_id", rid))
	status := http.StatusOK
	start := time.Now()
	eventbus.Publish(ctx, events.HTTPStart{Request: r})
	defer func() {
		eventbus.Publish(ctx, events.HTTPFinish{Request: r, Status: status, Duration: time.Since(start)})
	}()

	if r.Method == http.MethodOptions {
		if len(h.opt.CORS.AllowedOrigins) > 0 {
			setCORSHeaders(w, r, h.opt.CORS)
		}
		status = http.StatusNoContent
		w.WriteHeader(status)
		return
	}

	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		status = http.StatusMethodNotAllowed
		writeJSON(w, status, map[string]any{"error": "method not allowed"}, h.opt.Pretty)
		return
	}

	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(w, r, h.opt.CORS)
	}

	path, perr := requestPath(r, h.opt.MaxBodyBytes)
	if perr != "" {
		status = http.StatusBadRequest
		writeJSON(w, status, map[string]any{"error": perr}, h.opt.Pretty)
		return
	}

	rc := registry.RequestContext{
		RequestType:   r.Header.Get(HeaderRequestType),
		RenderMode:    r.Header.Get(HeaderRenderMode),
		ComponentPath: r.Header.Get(HeaderComponentPath),
	}

	result := h.res.FetchContent(ctx, path, rc)
	if result.Error != nil {
		status = statusFromCode(result.Error.Code)
	}
	writeJSON(w, status, result, h.opt.Pretty)
}

// contentRequest is the POST body shape. Path may be a string or a list of
// segments.
type contentRequest struct {
	Path any `json:"path"`
}

// requestPath extracts the content path: from the URL for GET requests
// (everything after the handler mount point), from the JSON body for POST.
func requestPath(r *http.Request, maxBody int64) (any, string) {
	if r.Method == http.MethodGet {
		return strings.Trim(r.URL.Path, "/"), ""
	}

	reader := io.Reader(r.Body)
	if maxBody > 0 {
		reader = io.LimitReader(r.Body, maxBody+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, "failed to read body"
	}
	defer r.Body.Close()
	if maxBody > 0 && int64(len(body)) > maxBody {
		return nil, "body too large"
	}
	var req contentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, "invalid JSON"
	}
	return req.Path, ""
}

// statusFromCode maps the engine's error codes to HTTP statuses. Transport
// failures surface as 502; anything unparseable as 500.
func statusFromCode(code string) int {
	switch code {
	case "API":
		return http.StatusBadGateway
	case "400":
		return http.StatusBadRequest
	case "403":
		return http.StatusForbidden
	case "404":
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any, pretty bool) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}

func setCORSHeaders(w http.ResponseWriter, r *http.Request, opts CORSOptions) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	allowed := false
	wildcard := false
	for _, o := range opts.AllowedOrigins {
		if o == "*" {
			allowed = true
			wildcard = true
		}
		if o == origin {
			allowed = true
		}
	}
	if !allowed {
		return
	}
	if wildcard {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	}
}
