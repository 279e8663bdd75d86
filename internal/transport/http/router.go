package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"invoicepro/internal/observability/middleware"
	"invoicepro/internal/ratelimit"
	"invoicepro/internal/service"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Options struct {
	SecureCookies bool
	CodeTTL       time.Duration

	RateLimitRequests int
	RateLimitWindow   time.Duration

	// LimitCounter shares rate-limit state between instances. Nil keeps it
	// in process.
	LimitCounter httprate.LimitCounter

	CORSOrigins    []string
	RequestTimeout time.Duration

	// HealthCheck, when set, makes /healthz a readiness probe of the store.
	HealthCheck func(ctx context.Context) error
}

func (o Options) withDefaults() Options {
	if o.CodeTTL <= 0 {
		o.CodeTTL = 10 * time.Minute
	}
	if o.RateLimitRequests <= 0 {
		o.RateLimitRequests = 20
	}
	if o.RateLimitWindow <= 0 {
		o.RateLimitWindow = time.Minute
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 30 * time.Second
	}
	return o
}

func NewRouter(auth service.AuthService, tokens service.TokenService, codes service.CodeService, opts Options) http.Handler {
	opts = opts.withDefaults()
	h := &authHandler{
		auth:    auth,
		tokens:  tokens,
		codes:   codes,
		cookies: cookieJar{secure: opts.SecureCookies, codeTTL: opts.CodeTTL},
	}

	r := chi.NewRouter()

	// --- Middlewares ---
	r.Use(middleware.WithRequestAndTrace)
	r.Use(middleware.WithMetrics)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(opts.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   originsIfSet(opts.CORSOrigins),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "X-Request-ID", "X-Trace-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Trace-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if opts.HealthCheck != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := opts.HealthCheck(ctx); err != nil {
				middleware.Logger(r.Context()).Error("health check failed", "error", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("unavailable"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	limiterOpts := []httprate.Option{
		// keyed on the socket peer; X-Forwarded-For is caller controlled
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			respond(w, http.StatusTooManyRequests, "Too many requests, please try again later", nil)
		}),
		httprate.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			middleware.Logger(r.Context()).Error("rate limiter", "error", err)
			respond(w, http.StatusInternalServerError, "Internal server error", nil)
		}),
	}
	if opts.LimitCounter != nil {
		limiterOpts = append(limiterOpts, httprate.WithLimitCounter(ratelimit.FailOpen(opts.LimitCounter)))
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Get("/jwks", handle(h.jwks))
		r.Get("/session", handle(h.session))
		r.Post("/logout", handle(h.logout))

		// credential and code endpoints are rate limited per client
		r.Group(func(r chi.Router) {
			r.Use(httprate.Limit(opts.RateLimitRequests, opts.RateLimitWindow, limiterOpts...))
			r.Post("/signup", handle(h.signup))
			r.Post("/login", handle(h.login))
			r.Post("/verify-2fa", handle(h.verifyTwoFactor))
			r.Post("/resend-code", handle(h.resendCode))
		})
	})

	return r
}

func originsIfSet(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
