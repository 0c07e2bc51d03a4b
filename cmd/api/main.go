package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	limiter "github.com/ulule/limiter/v3"
	limitermw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/comanda-app/backend-comanda/internal/analytics"
	"github.com/comanda-app/backend-comanda/internal/app"
	"github.com/comanda-app/backend-comanda/internal/audit"
	"github.com/comanda-app/backend-comanda/internal/auth"
	"github.com/comanda-app/backend-comanda/internal/cart"
	"github.com/comanda-app/backend-comanda/internal/checkout"
	"github.com/comanda-app/backend-comanda/internal/common"
	"github.com/comanda-app/backend-comanda/internal/config"
	"github.com/comanda-app/backend-comanda/internal/coupon"
	"github.com/comanda-app/backend-comanda/internal/db"
	"github.com/comanda-app/backend-comanda/internal/establishment"
	"github.com/comanda-app/backend-comanda/internal/health"
	"github.com/comanda-app/backend-comanda/internal/menu"
	"github.com/comanda-app/backend-comanda/internal/notify"
	"github.com/comanda-app/backend-comanda/internal/obs"
	"github.com/comanda-app/backend-comanda/internal/order"
	"github.com/comanda-app/backend-comanda/internal/ratelimit"
	"github.com/comanda-app/backend-comanda/internal/security"
	"github.com/comanda-app/backend-comanda/internal/tenant"

	"github.com/jackc/pgx/v5"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "comanda")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "comanda-api",
			Endpoint:      cfg.OTLPEndpoint,
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := app.NewPool(ctx, cfg, "comanda-api")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if err := app.MigrateUp(cfg); err != nil {
		logger.Fatal().Err(err).Msg("apply migrations")
	}

	redisClient, err := app.NewRedis(ctx, cfg, metricsEnabled)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect redis")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	store := db.New(pool)

	taskClient, err := app.NewTaskClient(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect task queue")
	}
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	authService, err := auth.NewService(auth.Config{
		Queries:         store,
		Sessions:        redisClient,
		Secret:          cfg.JWTSecret,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	authHandler := &auth.Handler{
		Service:           authService,
		AccessCookieName:  "comanda_access",
		RefreshCookieName: "comanda_refresh",
		CookieDomain:      cfg.CookieDomain,
		CookieSecure:      cfg.CookieSecure,
		CookieSameSite:    cfg.CookieSameSite,
	}
	authMiddleware := auth.Middleware{Service: authService, AccessCookie: "comanda_access"}

	menuCache := menu.NewCache(redisClient, envDurationSeconds("MENU_CACHE_TTL_SEC", 60))
	menuService, err := menu.NewService(menu.ServiceConfig{Queries: store, Cache: menuCache})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise menu service")
	}
	menuHandler := &menu.Handler{Service: menuService, Store: store}

	couponSvc := &coupon.Service{Q: store}
	couponHandler := &coupon.Handler{Store: store, Svc: couponSvc}

	cartSvc := &cart.Service{Q: store, Coupons: couponSvc, TTL: cfg.CartTTL}
	cartHandler := &cart.Handler{Svc: cartSvc, Coupons: couponSvc}

	enqueuer := &notify.Enqueuer{Client: taskClient}

	checkoutSvc := &checkout.Service{
		Q:        store,
		Pool:     pool,
		WithTx:   func(tx pgx.Tx) checkout.Store { return store.WithTx(tx) },
		Notifier: enqueuer,
	}
	checkoutHandler := &checkout.Handler{Svc: checkoutSvc}

	orderHandler := &order.Handler{Q: store, Notifier: enqueuer}
	orderAdmin := &order.AdminHandler{Q: store, Notifier: enqueuer}

	estHandler := &establishment.Handler{Store: store, Cache: menuService}

	analyticsHandler := analytics.Handler{Svc: &analytics.Service{
		Q:   store,
		R:   redisClient,
		TTL: envDurationSeconds("ANALYTICS_CACHE_TTL_SEC", 60),
	}}

	auditRecorder := audit.Recorder{
		Service: audit.Service{Q: store, Enabled: envBool("AUDIT_ENABLED", true)},
		OnError: func(err error) { logger.Error().Err(err).Msg("audit write failed") },
	}
	auditHandler := audit.Handler{Q: store}

	resolver := tenant.NewResolver(envOrDefault("TENANT_HEADER", "X-Establishment"), cfg.BaseDomain, store)

	idem := common.Idem{R: redisClient, TTL: envDurationSeconds("IDEMPOTENCY_TTL_SEC", 600)}

	checkoutLimit := ratelimit.Throttle{
		Store:   ratelimit.SlidingWindow{R: redisClient, Prefix: "rl:checkout:"},
		Key:     common.ClientIP,
		Window:  time.Minute,
		Max:     envInt("CHECKOUT_RATE_MAX_PER_MIN", 10),
		OnError: func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") },
	}

	rateStore, err := limiterredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{Prefix: "limiter"})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise limiter store")
	}
	globalLimit := limitermw.NewMiddleware(limiter.New(rateStore, limiter.Rate{
		Period: time.Minute,
		Limit:  int64(envInt("GLOBAL_RATE_MAX_PER_MIN", 300)),
	}))
	loginLimit := limitermw.NewMiddleware(limiter.New(rateStore, limiter.Rate{
		Period: time.Minute,
		Limit:  int64(envInt("LOGIN_RATE_MAX_PER_MIN", 10)),
	}))

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.CookieSecure}.Middleware)
	r.Use(security.BodyLimit{Max: int64(envInt("MAX_BODY_BYTES", 1<<20))}.Middleware)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Establishment", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:      health.Probes{Pool: pool, Redis: redisClient},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(globalLimit.Handler)

		v.Route("/auth", func(a chi.Router) {
			a.With(loginLimit.Handler).Post("/login", authHandler.Login)
			a.Post("/refresh", authHandler.Refresh)
			a.Post("/logout", authHandler.Logout)
			a.With(authMiddleware.RequireStaff).Get("/me", authHandler.Me)
		})

		// Storefront: every route below resolves the establishment from the
		// X-Establishment header or the subdomain.
		v.Group(func(pub chi.Router) {
			pub.Use(resolver.Middleware)

			pub.Get("/menu", menuHandler.Menu)
			pub.Get("/menu/products/{slug}", menuHandler.ProductDetail)
			pub.Post("/coupons/preview", couponHandler.Preview)
			pub.Get("/orders/{ref}", orderHandler.Track)
			pub.Post("/orders/{ref}/cancel", orderHandler.Cancel)

			pub.Route("/carts", func(c chi.Router) {
				c.Get("/{id}", cartHandler.Get)
				c.Group(func(g chi.Router) {
					g.Use(idem.Middleware)
					g.Post("/", cartHandler.Create)
					g.Post("/{id}/items", cartHandler.AddItem)
					g.Patch("/{id}/items/{itemId}", cartHandler.UpdateItem)
					g.Delete("/{id}/items/{itemId}", cartHandler.RemoveItem)
					g.Post("/{id}/apply-coupon", cartHandler.ApplyCoupon)
					g.Delete("/{id}/coupon", cartHandler.RemoveCoupon)
				})
			})

			pub.With(checkoutLimit.Middleware, idem.Middleware).Post("/checkout", checkoutHandler.Checkout)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMiddleware.RequireStaff)
			admin.Use(auditRecorder.Middleware)

			admin.Get("/settings", estHandler.Settings)
			admin.With(auth.RequireRole(auth.RoleOwner, auth.RoleMaster)).Put("/settings", estHandler.UpdateSettings)

			admin.Route("/staff", func(s chi.Router) {
				s.Use(auth.RequireRole(auth.RoleOwner, auth.RoleMaster))
				s.Get("/", estHandler.ListStaff)
				s.Post("/", estHandler.CreateStaff)
				s.Delete("/{id}", estHandler.DeleteStaff)
			})

			admin.Post("/categories", menuHandler.CreateCategory)
			admin.Delete("/categories/{id}", menuHandler.DeleteCategory)
			admin.Post("/products", menuHandler.CreateProduct)
			admin.Put("/products/{id}", menuHandler.UpdateProduct)
			admin.Delete("/products/{id}", menuHandler.DeleteProduct)
			admin.Post("/products/{id}/variations", menuHandler.CreateVariation)
			admin.Delete("/variations/{id}", menuHandler.DeleteVariation)
			admin.Post("/products/{id}/addons", menuHandler.CreateAddon)
			admin.Delete("/addons/{id}", menuHandler.DeleteAddon)

			admin.Post("/coupons", couponHandler.Create)
			admin.Get("/coupons", couponHandler.List)
			admin.Delete("/coupons/{id}", couponHandler.Delete)

			admin.Get("/orders", orderAdmin.List)
			admin.Get("/orders/{id}", orderAdmin.Get)
			admin.Patch("/orders/{id}/status", orderAdmin.PatchStatus)

			admin.Get("/analytics/sales", analyticsHandler.Sales)
			admin.Get("/analytics/top-products", analyticsHandler.TopProducts)
			admin.With(auth.RequireRole(auth.RoleOwner, auth.RoleMaster)).Get("/audit", auditHandler.List)
		})

		v.Route("/master", func(master chi.Router) {
			master.Use(authMiddleware.RequireStaff)
			master.Use(auth.RequireRole(auth.RoleMaster))
			master.Post("/establishments", estHandler.Create)
			master.Get("/establishments", estHandler.List)
			master.Put("/establishments/{id}", estHandler.Update)
			master.Post("/plans", estHandler.CreatePlan)
			master.Get("/plans", estHandler.ListPlans)
			master.Put("/plans/{id}", estHandler.UpdatePlan)
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	<-shutdownCtx.Done()
	health.SetReady(false)
	logger.Info().Msg("draining connections")

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelDrain()
	if err := srv.Shutdown(drainCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("server stopped")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func envDurationSeconds(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Second
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 ||
			subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="pprof"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
