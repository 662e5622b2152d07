// Package marketplace собирает HTTP API маркетплейса и gRPC health-сервер
// из конфигурации и управляет их жизненным циклом.
package marketplace

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/marketplace-backend/internal/cache"
	"github.com/magabrotheeeer/marketplace-backend/internal/config"
	"github.com/magabrotheeeer/marketplace-backend/internal/grpc/server"
	"github.com/magabrotheeeer/marketplace-backend/internal/http/middlewarectx"
	"github.com/magabrotheeeer/marketplace-backend/internal/lib/jwt"
	"github.com/magabrotheeeer/marketplace-backend/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/marketplace-backend/internal/lib/sl"
	"github.com/magabrotheeeer/marketplace-backend/internal/lib/sms"
	"github.com/magabrotheeeer/marketplace-backend/internal/lib/smtp"
	"github.com/magabrotheeeer/marketplace-backend/internal/metrics"
	"github.com/magabrotheeeer/marketplace-backend/internal/migrations"
	"github.com/magabrotheeeer/marketplace-backend/internal/paymentprovider"
	"github.com/magabrotheeeer/marketplace-backend/internal/services/account"
	"github.com/magabrotheeeer/marketplace-backend/internal/services/billing"
	"github.com/magabrotheeeer/marketplace-backend/internal/services/content"
	"github.com/magabrotheeeer/marketplace-backend/internal/services/dashboard"
	"github.com/magabrotheeeer/marketplace-backend/internal/services/sender"
	"github.com/magabrotheeeer/marketplace-backend/internal/services/supplychain"
	"github.com/magabrotheeeer/marketplace-backend/internal/social"
	"github.com/magabrotheeeer/marketplace-backend/internal/storage"
)

const shutdownTimeout = 15 * time.Second

// App процесс API: HTTP-сервер, gRPC health и их зависимости.
type App struct {
	server  *http.Server
	grpc    *server.Server
	health  *server.HealthServer
	logger  *slog.Logger
	db      *storage.Storage
	cache   *cache.Cache
	amqp    *amqp.Connection
	closers []func()
}

// Services прикладные сервисы, доступные маршрутам.
type Services struct {
	Account     *account.AccountService
	Billing     *billing.BillingService
	Dashboard   *dashboard.DashboardService
	SupplyChain *supplychain.SupplyChainService
	Content     *content.ContentService
	JWT         jwt.Maker
	Metrics     *metrics.Metrics
	RateLimit   config.RateLimit
	Proxies     *middlewarectx.TrustedProxies
}

// New подключает хранилища, собирает сервисы и маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := storage.New(cfg.StorageConnectionString, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Migrations.RunOnStart {
		if err = migrations.Run(db.DB); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	app := &App{logger: logger, db: db, cache: cacheRedis}

	events, err := app.publisher(cfg.RabbitMQ)
	if err != nil {
		app.close()
		return nil, err
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, jwt.Options{
		Issuer:     cfg.Issuer,
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
		ResetTTL:   cfg.ResetTTL,
	})

	var smsSender sender.SMSSender
	if s, err := sms.NewSender(cfg.Twilio); err == nil {
		smsSender = s
	} else {
		logger.Warn("sms channel disabled", sl.Err(err))
	}
	notifier := sender.NewSenderService(smtp.NewTransport(cfg.SMTP, logger), smsSender, m, logger)

	google := social.NewGoogleVerifier(cfg.GoogleClientID, cfg.GoogleJWKSURL, logger)
	apple := social.NewAppleVerifier(cfg.AppleClientID, cfg.AppleJWKSURL, logger)
	app.closers = append(app.closers, google.Close, apple.Close)
	verifiers := map[string]account.IdentityVerifier{
		"google":    google,
		"apple":     apple,
		"microsoft": social.NewMicrosoftVerifier(cfg.MicrosoftGraphURL, nil),
	}

	accountService := account.NewAccountService(
		db, notifier, cache.NewTokenStore(cacheRedis, "reset"), jwtMaker, verifiers, events,
		account.Options{
			OTPLength:   cfg.OTP.Length,
			OTPTTL:      cfg.OTP.TTL,
			OTPChannel:  cfg.OTP.Channel,
			PhoneRegion: cfg.Phone.DefaultRegion,
			AutoVerify:  cfg.AutoVerify,
		},
		logger,
	)

	processor := paymentprovider.NewClient(paymentprovider.Options{
		SecretKey:     cfg.SecretKey,
		WebhookSecret: cfg.WebhookSecret,
		Currency:      cfg.Currency,
		Interval:      cfg.Interval,
	})
	billingService := billing.NewBillingService(db, db, db, processor, events, m, billing.URLsFromFrontend(cfg.FrontendURL), logger)

	dashboardService := dashboard.NewDashboardService(db, cacheRedis, m, dashboard.Options{
		TTL:       cfg.Dashboard.TTL,
		KeyPrefix: cfg.Dashboard.KeyPrefix,
	}, logger)
	dashboardService.Register(db)

	proxies, err := middlewarectx.ParseTrustedProxies(cfg.RateLimit.TrustedProxies)
	if err != nil {
		app.close()
		return nil, err
	}

	svcs := Services{
		Account:     accountService,
		Billing:     billingService,
		Dashboard:   dashboardService,
		SupplyChain: supplychain.NewSupplyChainService(db, db, events, logger),
		Content:     content.NewContentService(db, logger),
		JWT:         jwtMaker,
		Metrics:     m,
		RateLimit:   cfg.RateLimit,
		Proxies:     proxies,
	}

	deps := map[string]server.Pinger{"postgres": db, "redis": cacheRedis}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, svcs, deps)

	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	app.health = server.NewHealthServer(deps, logger)
	app.grpc, err = server.New(cfg.AddressGRPC, app.health, logger)
	if err != nil {
		app.close()
		return nil, err
	}

	return app, nil
}

// publisher подключает RabbitMQ, если он включён; иначе события не публикуются.
func (a *App) publisher(cfg config.RabbitMQ) (account.EventPublisher, error) {
	if !cfg.Enabled {
		a.logger.Info("rabbitmq disabled, domain events are dropped")
		return rabbitmq.NopPublisher{}, nil
	}
	conn, err := rabbitmq.Connect(cfg.URL, cfg.Retries, cfg.Delay)
	if err != nil {
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, cfg.Exchange, rabbitmq.GetEventQueues())
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	a.amqp = conn
	a.logger.Info("rabbitmq connected", slog.String("exchange", cfg.Exchange))
	return rabbitmq.NewPublisher(ch, cfg.Exchange), nil
}

// Run запускает серверы и останавливает их по отмене ctx.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	grpcCtx, stopGRPC := context.WithCancel(ctx)
	defer stopGRPC()
	go func() {
		if err := a.grpc.Run(grpcCtx); err != nil {
			errCh <- err
		}
	}()
	a.health.SetServing()

	var runErr error
	select {
	case runErr = <-errCh:
	case <-ctx.Done():
	}

	timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.logger.Info("shutting down HTTP server gracefully")
	stopGRPC()
	if err := a.server.Shutdown(timeoutCtx); err != nil && runErr == nil {
		runErr = err
	}
	a.close()
	return runErr
}

func (a *App) close() {
	for _, c := range a.closers {
		c()
	}
	if a.amqp != nil {
		if err := a.amqp.Close(); err != nil {
			a.logger.Warn("failed to close rabbitmq connection", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("failed to close redis", sl.Err(err))
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("failed to close database", sl.Err(err))
	}
}
