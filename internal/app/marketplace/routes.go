package marketplace

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/marketplace-backend/internal/grpc/server"
	"github.com/magabrotheeeer/marketplace-backend/internal/http/handlers/account"
	"github.com/magabrotheeeer/marketplace-backend/internal/http/handlers/billing"
	"github.com/magabrotheeeer/marketplace-backend/internal/http/handlers/content"
	"github.com/magabrotheeeer/marketplace-backend/internal/http/handlers/dashboard"
	"github.com/magabrotheeeer/marketplace-backend/internal/http/handlers/supplychain"
	"github.com/magabrotheeeer/marketplace-backend/internal/http/middlewarectx"
	"github.com/magabrotheeeer/marketplace-backend/internal/lib/sl"
)

const healthTimeout = 2 * time.Second

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, svcs Services, deps map[string]server.Pinger) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middlewarectx.RealIP(svcs.Proxies),
		middleware.Logger,
		middleware.Recoverer,
		svcs.Metrics.Middleware,
	)

	accountHandler := account.New(logger, svcs.Account)
	billingHandler := billing.New(logger, svcs.Billing, svcs.Account)
	dashboardHandler := dashboard.New(logger, svcs.Dashboard)
	supplyHandler := supplychain.New(logger, svcs.SupplyChain)
	contentHandler := content.New(logger, svcs.Content)

	limiter := middlewarectx.NewRateLimiter(svcs.RateLimit.RPS, svcs.RateLimit.Burst)
	otpGuard := middlewarectx.NewFailureGuard(svcs.RateLimit.MaxFailures, svcs.RateLimit.FailureWindow).Middleware(logger)
	auth := middlewarectx.JWTMiddleware(svcs.JWT, logger)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки с ограничением частоты
		r.Group(func(r chi.Router) {
			r.Use(limiter.Middleware(logger))
			r.Post("/signup", accountHandler.Signup)
			r.With(otpGuard).Post("/verify-otp", accountHandler.VerifyOTP)
			r.Post("/resend-otp", accountHandler.ResendOTP)
			r.Post("/login", accountHandler.Login)
			r.Post("/forget-password", accountHandler.ForgetPassword)
			r.With(otpGuard).Post("/password/verify-otp", accountHandler.VerifyForgetPasswordOTP)
		})

		// Открытые конечные точки
		r.Post("/token/refresh", accountHandler.Refresh)
		r.Post("/reset-password", accountHandler.ResetPassword)
		r.Post("/social/{provider}/login", accountHandler.SocialLogin)
		r.Get("/plans", billingHandler.ListPlans)
		r.Get("/content/{slug}", contentHandler.GetPage)
		r.Post("/queries", contentHandler.CreateQuery)

		// Webhook endpoint (без аутентификации, проверяется подпись)
		r.Post("/stripe/webhook", billingHandler.Webhook)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(auth)

			r.Get("/profile", accountHandler.Profile)
			r.Patch("/profile", accountHandler.UpdateProfile)

			r.Post("/checkout", billingHandler.Checkout)
			r.Get("/my-subscriptions", billingHandler.MySubscriptions)
			r.Post("/cancel-subscription", billingHandler.Cancel)

			r.Route("/suppliers", func(r chi.Router) {
				r.Get("/", supplyHandler.ListSuppliers)
				r.Post("/", supplyHandler.CreateSupplier)
				r.Get("/{id}", supplyHandler.GetSupplier)
				r.Put("/{id}", supplyHandler.UpdateSupplier)
				r.Patch("/{id}", supplyHandler.UpdateSupplier)
				r.Delete("/{id}", supplyHandler.DeleteSupplier)
			})
			r.Route("/resources", func(r chi.Router) {
				r.Get("/", supplyHandler.ListResources)
				r.Post("/", supplyHandler.CreateResource)
				r.Get("/{id}", supplyHandler.GetResource)
				r.Put("/{id}", supplyHandler.UpdateResource)
				r.Patch("/{id}", supplyHandler.UpdateResource)
				r.Delete("/{id}", supplyHandler.DeleteResource)
			})
			r.Get("/tasks", supplyHandler.ListTasks)
			r.Get("/tasks/{id}", supplyHandler.GetTask)
			r.Get("/task/status", supplyHandler.TaskStatus)
			r.Get("/notifications", supplyHandler.ListNotifications)
			r.Patch("/notifications/{id}/read", supplyHandler.MarkRead)

			r.Get("/thoughts", contentHandler.ListThoughts)
			r.Post("/thoughts", contentHandler.ShareThought)

			// Администраторы
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.RequireAdmin(logger))
				r.Get("/dashboard", dashboardHandler.Overview)
				r.Get("/dashboard/users/{id}", dashboardHandler.UserDetail)
				r.Post("/plans", billingHandler.CreatePlan)
				r.Get("/queries", contentHandler.ListQueries)
				r.Get("/queries/{id}", contentHandler.GetQuery)
			})

			// Редактирование контента только суперпользователем
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.RequireSuperuser(svcs.Account, logger))
				r.Put("/content/{slug}", contentHandler.SavePage)
				r.Patch("/content/{slug}", contentHandler.SavePage)
			})
		})
	})

	r.Get("/healthz", healthz(deps, logger))
	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}

// healthz отвечает 200, если все зависимости доступны, иначе 503.
func healthz(deps map[string]server.Pinger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		status := http.StatusOK
		checks := make(map[string]string, len(deps))
		for name, dep := range deps {
			if err := dep.Ping(ctx); err != nil {
				logger.Warn("health check failed", slog.String("dependency", name), sl.Err(err))
				checks[name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "up"
		}
		render.Status(r, status)
		render.JSON(w, r, checks)
	}
}
