package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"rewards/internal/core"
	applog "rewards/internal/log"
	"rewards/internal/middleware/ratelimit"
	"rewards/internal/middleware/security"
	"rewards/internal/middleware/trace"
	appweb "rewards/web"
)

// ReportRefresher is the part of services.ReportService the handlers use.
type ReportRefresher interface {
	Refresh(ctx context.Context, client string, r core.DateRange) (core.Snapshot, error)
	Previous(r core.DateRange) (core.Snapshot, bool)
	Latest() (core.Snapshot, bool)
}

type Options struct {
	// WindowDays sizes the default report window ending now.
	WindowDays int
	// RefreshesPerMinute bounds report refreshes per client.
	RefreshesPerMinute int
	Logger             *applog.Logger
	Now                func() time.Time
	// Records enables the record endpoints; nil leaves them unregistered.
	Records RecordEditor
}

type Server struct {
	http.Server
	templates  *template.Template
	reports    ReportRefresher
	records    RecordEditor
	limiter    *ratelimit.Limiter
	tracer     *trace.Middleware
	detector   *security.Detector
	logger     *applog.Logger
	windowDays int
	now        func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, reports ReportRefresher, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	if opts.WindowDays <= 0 {
		opts.WindowDays = 30
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger.WithComponent(applog.ComponentHTTP)

	s := &Server{
		reports:    reports,
		records:    opts.Records,
		limiter:    ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RefreshesPerMinute}),
		tracer:     trace.NewMiddleware(opts.Logger, security.ClientIP),
		detector:   security.NewDetector(),
		logger:     logger,
		windowDays: opts.WindowDays,
		now:        opts.Now,
	}

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", applog.FieldError, err)
	}
	s.templates = t

	mux := http.NewServeMux()
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600")
			static.ServeHTTP(w, r)
		}))
	} else {
		logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	limited := s.limiter.Middleware(security.ClientIP, s.onRateLimit)

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.Handle("POST /reports/apply", limited(http.HandlerFunc(s.handleApply)))
	mux.Handle("GET /api/reports", limited(http.HandlerFunc(s.handleAPIReports)))
	mux.HandleFunc("GET /api/reports/latest", s.handleAPILatest)
	if s.records != nil {
		mux.HandleFunc("GET /api/records/stats", s.handleRecordStats)
		mux.HandleFunc("GET /api/records/{resource}/{id}", s.handleRecord)
		mux.HandleFunc("GET /api/regions/{id}", s.handleRegion)
		mux.Handle("POST /api/regions", limited(http.HandlerFunc(s.handleCreateRegion)))
		mux.Handle("DELETE /api/regions/{id}", limited(http.HandlerFunc(s.handleDeleteRegion)))
		mux.Handle("POST /api/regions/{id}/zones", limited(http.HandlerFunc(s.handleAddZone)))
		mux.Handle("DELETE /api/regions/{id}/zones/{zone}", limited(http.HandlerFunc(s.handleRemoveZone)))
	}
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	var handler http.Handler = mux
	handler = security.Headers(security.DefaultHeadersConfig())(handler)
	handler = s.detector.Middleware(s.onSuspicious)(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Shutdown stops background routines and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, security.ClientIP(r),
		applog.FieldPath, r.URL.Path)
	w.Header().Set("Retry-After", "60")
	http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
}

func (s *Server) onSuspicious(r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
		applog.FieldClientIP, security.ClientIP(r),
		applog.FieldPath, r.URL.Path,
		applog.FieldUserAgent, r.UserAgent())
}
