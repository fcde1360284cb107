package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/grantdesk/grantdesk/internal/audit"
	audithttp "github.com/grantdesk/grantdesk/internal/audit/http"
	"github.com/grantdesk/grantdesk/internal/auth"
	"github.com/grantdesk/grantdesk/internal/backend"
	"github.com/grantdesk/grantdesk/internal/crud"
	"github.com/grantdesk/grantdesk/internal/dashboard"
	"github.com/grantdesk/grantdesk/internal/directory"
	"github.com/grantdesk/grantdesk/internal/files"
	"github.com/grantdesk/grantdesk/internal/finance"
	"github.com/grantdesk/grantdesk/internal/listing"
	"github.com/grantdesk/grantdesk/internal/observability"
	"github.com/grantdesk/grantdesk/internal/options"
	"github.com/grantdesk/grantdesk/internal/platform/cache"
	"github.com/grantdesk/grantdesk/internal/projects"
	"github.com/grantdesk/grantdesk/internal/rbac"
	"github.com/grantdesk/grantdesk/internal/shared"
	"github.com/grantdesk/grantdesk/internal/students"
	"github.com/grantdesk/grantdesk/internal/view"
	"github.com/grantdesk/grantdesk/internal/wizard"
	"github.com/grantdesk/grantdesk/jobs"
)

// SessionCookie names the console session cookie.
const SessionCookie = "grantdesk_session"

// Mounter is a handler that registers its routes under a prefix.
type Mounter interface {
	MountRoutes(r chi.Router)
}

// Section is a handler mounted at Path.
type Section struct {
	Path    string
	Handler Mounter
}

// Dependencies are the runtime services the console is assembled from.
type Dependencies struct {
	Logger    *slog.Logger
	Config    *Config
	Redis     *redis.Client
	Backend   *backend.Client
	Templates view.Renderer
	Metrics   *observability.Metrics
	// Discarder may be nil, in which case abandoned drafts are kept.
	Discarder wizard.Discarder
	// Queue reports background job health; nil hides the endpoint.
	Queue jobs.QueueInspector
	Now   func() time.Time
}

// NewConsole builds every handler and returns the router parameters.
func NewConsole(d Dependencies) RouterParams {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Config == nil {
		d.Config = &Config{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	cfg := d.Config

	sessions := shared.NewSessionManager(d.Redis, SessionCookie, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrf := shared.NewCSRFManager(cfg.CSRFSecret)
	rs := view.Responder{Logger: d.Logger, Templates: d.Templates, CSRF: csrf}
	rb := rbac.Middleware{Logger: d.Logger}

	validator := shared.NewValidator()
	students.RegisterRules(validator, d.Now)

	opts := options.NewService(options.RemoteFetcher(d.Backend), d.Redis, cfg.OptionsCacheTTL, d.Logger)

	var discarder wizard.Discarder
	if cfg.WizardDiscardDrafts && d.Discarder != nil {
		discarder = d.Discarder
	}
	ctrl := wizard.NewController(
		wizard.NewRedisStore(d.Redis, cfg.SessionTTL),
		d.Backend,
		discarder,
		d.Logger,
		projects.Wizard(validator),
		students.Wizard(validator),
	)
	if d.Metrics != nil {
		ctrl = ctrl.WithObserver(d.Metrics)
	}
	gate := files.NewGate(d.Redis, 0)
	ctrl = ctrl.WithGate(gate)

	sections := []Section{
		resource(rs, d.Backend, opts, rb, directory.Users(validator)),
		resource(rs, d.Backend, opts, rb, directory.Centers(validator)),
		resource(rs, d.Backend, opts, rb, directory.Instructors(validator)),
		resource(rs, d.Backend, opts, rb, students.Resource(validator)),
		resource(rs, d.Backend, opts, rb, projects.Resource(validator)),
		resource(rs, d.Backend, opts, rb, finance.Sources(validator)),
		resource(rs, d.Backend, opts, rb, finance.Donations(validator)),
		resource(rs, d.Backend, opts, rb, finance.Expenses(validator)),
		{Path: "/wizards", Handler: wizard.NewHandler(rs, ctrl, opts, rb, cfg.UploadMaxBytes)},
		{Path: "/files", Handler: files.NewHandler(rs, d.Backend,
			listing.RemoteFetcher[files.Attachment](d.Backend, files.ListConfig.Endpoint),
			gate, validator, rb, cfg.UploadMaxBytes)},
		{Path: "/logs", Handler: audithttp.NewHandler(rs,
			listing.RemoteFetcher[audit.Log](d.Backend, audit.ListConfig.Endpoint), rb)},
	}

	var jobsHandler *jobs.Handler
	if d.Queue != nil {
		jobsHandler = jobs.NewHandler(d.Queue, d.Logger)
	}

	return RouterParams{
		Logger:         d.Logger,
		Config:         cfg,
		SessionManager: sessions,
		CSRFManager:    csrf,
		RBACMiddleware: rb,
		Metrics:        d.Metrics,
		Ready:          func(ctx context.Context) error { return cache.Ready(ctx, d.Redis) },
		AuthHandler:    auth.NewHandler(rs, auth.NewService(d.Backend), sessions, validator),
		Dashboard:      dashboard.NewHandler(rs, dashboard.RemoteCounter(d.Backend)),
		Sections:       sections,
		JobHandler:     jobsHandler,
	}
}

func resource[T any](rs view.Responder, client *backend.Client, opts crud.OptionLookup, rb rbac.Middleware, res crud.Resource[T]) Section {
	fetch := listing.RemoteFetcher[T](client, res.List.Endpoint)
	return Section{Path: res.Path, Handler: crud.NewHandler(rs, client, fetch, opts, rb, res)}
}
