package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/radial/internal/shared"
	"golang.org/x/oauth2"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler defines the interface for HTTP request handlers that own several routes.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// AppOpts configures the web service built by [NewApp].
type AppOpts struct {
	API APIOpts

	// OAuth enables /login and /callback when set together with Complete.
	OAuth    *oauth2.Config
	Complete CompleteLogin

	// Sessions signs the login cookie. A nil value uses a random key.
	Sessions *Sessions

	Logger *log.Logger
}

// NewApp wires the clustering API and the login flow behind logging and recovery middleware.
func NewApp(opts AppOpts) *BasicRouter {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.API.Logger == nil {
		opts.API.Logger = opts.Logger
	}
	if opts.Sessions == nil {
		opts.Sessions, _ = NewSessions(nil, false)
	}
	opts.API.Sessions = opts.Sessions

	router := NewBasicRouter()
	router.Use(Recover(opts.Logger), Logging(opts.Logger))

	router.HandleFunc(http.MethodGet, "/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	NewAPI(opts.API).Register(router)

	if opts.OAuth != nil && opts.Complete != nil {
		router.Handler(NewLoginHandler(opts.OAuth, opts.Complete, opts.Sessions, opts.Logger))
	}
	return router
}

// ListenAndServe serves handler on addr until ctx is cancelled, then shuts down gracefully.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler, logger *log.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	logger.Info("shutting down server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errs
}
