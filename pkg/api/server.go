// Package api wires the HTTP surface: routing, per-route auth and the
// translation between wire requests and the domain services.
package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/liquidintel/taplist/pkg/activity"
	"github.com/liquidintel/taplist/pkg/httputil"
	"github.com/liquidintel/taplist/pkg/identity"
	"github.com/liquidintel/taplist/pkg/inventory"
	"github.com/liquidintel/taplist/pkg/observability"
)

// InventoryService is the keg inventory surface the handlers depend on
type InventoryService interface {
	ListCurrentKegs(ctx context.Context, tapID *int64) ([]inventory.CurrentKeg, error)
	InstallKeg(ctx context.Context, tapID int64, req inventory.InstallRequest) ([]inventory.CurrentKeg, error)
	CreateKeg(ctx context.Context, keg inventory.Keg) (*inventory.Keg, error)
	GetKegs(ctx context.Context, kegID *int64) ([]inventory.Keg, error)
	FinishKeg(ctx context.Context, tapID int64) error
}

// IdentityService is the person/user surface the handlers depend on
type IdentityService interface {
	ResolvePersonByCardID(ctx context.Context, cardID int64) (*identity.PersonValidation, error)
	GetUserDetails(ctx context.Context, upn string) ([]identity.UserDetail, error)
	UpsertUserDetails(ctx context.Context, upn string, update identity.UserUpdate) ([]identity.UserDetail, error)
}

// ActivityService is the pour reporting surface the handlers depend on
type ActivityService interface {
	ListActivity(ctx context.Context, filter activity.Filter) ([]activity.Record, error)
	CreateSession(ctx context.Context, session activity.NewSession) (*activity.Record, error)
}

// Middleware guards or decorates a route
type Middleware = func(http.Handler) http.Handler

// Options configures a Server
type Options struct {
	Inventory InventoryService
	Identity  IdentityService
	Activity  ActivityService

	// BasicAuth guards kiosk routes, BearerAuth guards admin routes.
	BasicAuth  Middleware
	BearerAuth Middleware

	Logger  *observability.Logger
	Metrics *observability.Metrics

	// EnableTracing wraps the handler tree with otelhttp instrumentation.
	EnableTracing bool
}

// Server is the taplist HTTP API
type Server struct {
	router  *mux.Router
	opts    Options
	logger  *observability.Logger
	handler http.Handler
}

// NewServer builds the router and middleware chain
func NewServer(opts Options) *Server {
	s := &Server{
		router: mux.NewRouter(),
		opts:   opts,
		logger: opts.Logger.WithField("component", "api"),
	}
	s.registerRoutes()

	chain := []Middleware{
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(opts.Logger),
		httputil.RecoveryMiddleware(opts.Logger),
		httputil.CORSMiddleware,
		httputil.ContentTypeMiddleware,
		httputil.MaxBytesMiddleware(1 << 20),
	}
	if opts.Metrics != nil {
		chain = append(chain, opts.Metrics.HTTPMiddleware)
	}

	s.handler = httputil.Chain(chain...)(s.router)
	if opts.EnableTracing {
		s.handler = otelhttp.NewHandler(s.handler, "taplist-api")
	}
	return s
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) registerRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	basic := s.opts.BasicAuth
	bearer := s.opts.BearerAuth

	api.HandleFunc("", s.handleWelcome).Methods(http.MethodGet)
	api.HandleFunc("/", s.handleWelcome).Methods(http.MethodGet)

	api.Handle("/isPersonValid/{card_id}", basic(http.HandlerFunc(s.handleIsPersonValid))).Methods(http.MethodGet)

	api.Handle("/kegs", basic(http.HandlerFunc(s.handleGetKegs))).Methods(http.MethodGet)
	api.Handle("/kegs", bearer(http.HandlerFunc(s.handleCreateKeg))).Methods(http.MethodPost)

	api.Handle("/activity", basic(http.HandlerFunc(s.handleGetActivity))).Methods(http.MethodGet)
	api.Handle("/activity/{session_id}", basic(http.HandlerFunc(s.handleGetActivity))).Methods(http.MethodGet)
	api.Handle("/activity", basic(http.HandlerFunc(s.handleCreateSession))).Methods(http.MethodPost)

	api.Handle("/CurrentKeg", basic(http.HandlerFunc(s.handleGetCurrentKeg))).Methods(http.MethodGet)
	api.Handle("/CurrentKeg/{tap_id}", basic(http.HandlerFunc(s.handleGetCurrentKeg))).Methods(http.MethodGet)
	api.Handle("/CurrentKeg/{tap_id}", bearer(http.HandlerFunc(s.handleInstallKeg))).Methods(http.MethodPut)

	api.Handle("/users", bearer(http.HandlerFunc(s.handleGetUsers))).Methods(http.MethodGet)
	api.Handle("/users/{user_id}", bearer(http.HandlerFunc(s.handleGetUsers))).Methods(http.MethodGet)
	api.Handle("/users", bearer(http.HandlerFunc(s.handleUpdateUser))).Methods(http.MethodPut)
	api.Handle("/users/{user_id}", bearer(http.HandlerFunc(s.handleUpdateUser))).Methods(http.MethodPut)

	api.Handle("/kegFinished/{tap_id}", bearer(http.HandlerFunc(s.handleFinishKeg))).Methods(http.MethodPut)
}

func (s *Server) handleWelcome(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, map[string]string{
		"message": "Welcome to the taplist api!",
	})
}
