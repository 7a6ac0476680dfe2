// Package webapp layers an HTTP server over a host.
package webapp

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/timzifer/cqlreg/host"
)

// WebSection is the configuration section read for the listen address.
const WebSection = "Web"

const defaultListen = ":8080"

// Config is bound from the Web section.
type Config struct {
	Listen string `yaml:"listen"`
}

// HandlerFactory creates a handler once the app is built.
type HandlerFactory func(app *App) http.Handler

type route struct {
	pattern string
	factory HandlerFactory
}

// Builder is a host.Builder with HTTP routes.
type Builder struct {
	*host.Builder
	listen string
	routes []route
}

// NewBuilder returns a builder serving /healthz and /metrics.
func NewBuilder() *Builder {
	return &Builder{Builder: host.NewBuilder()}
}

// Host returns the underlying host builder.
func (b *Builder) Host() *host.Builder {
	return b.Builder
}

// Listen overrides the address from the Web section.
func (b *Builder) Listen(addr string) *Builder {
	b.listen = addr
	return b
}

// Handle registers a handler created at Build time.
func (b *Builder) Handle(pattern string, factory HandlerFactory) *Builder {
	if pattern != "" && factory != nil {
		b.routes = append(b.routes, route{pattern: pattern, factory: factory})
	}
	return b
}

// Build builds the host and mounts the routes.
func (b *Builder) Build() (*App, error) {
	app := &App{Router: http.NewServeMux(), ready: make(chan struct{})}
	b.Builder.AddRunner(app.serve)
	h, err := b.Builder.Build()
	if err != nil {
		return nil, err
	}
	app.Host = h

	var cfg Config
	if err := h.Configuration.Bind(WebSection, &cfg); err != nil {
		h.Close()
		return nil, err
	}
	app.listen = cfg.Listen
	if b.listen != "" {
		app.listen = b.listen
	}
	if app.listen == "" {
		app.listen = defaultListen
	}

	app.Router.HandleFunc("/healthz", handleHealth)
	app.Router.Handle("/metrics", promhttp.HandlerFor(h.Registry, promhttp.HandlerOpts{}))
	for _, r := range b.routes {
		app.Router.Handle(r.pattern, r.factory(app))
	}
	return app, nil
}

// App is a built web application. Run serves HTTP until the context is done.
type App struct {
	*host.Host
	Router *http.ServeMux

	listen    string
	ready     chan struct{}
	readyOnce sync.Once
	mu        sync.Mutex
	addr      net.Addr
}

// Ready is closed once the listener is bound for the first time.
func (a *App) Ready() <-chan struct{} {
	return a.ready
}

// Addr returns the bound listen address, or nil before Ready.
func (a *App) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addr
}

func (a *App) serve(ctx context.Context, h *host.Host) error {
	ln, err := net.Listen("tcp", a.listen)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.addr = ln.Addr()
	a.mu.Unlock()
	a.readyOnce.Do(func() { close(a.ready) })

	srv := &http.Server{Handler: a.Router}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	h.Logger.Info().Str("listen", ln.Addr().String()).Msg("web app started")

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), h.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		h.Logger.Error().Err(err).Msg("shutdown web app")
	}
	return nil
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
