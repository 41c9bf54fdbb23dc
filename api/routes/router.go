package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vitalcart/storefront-backend/api/controllers"
	authcontrollers "github.com/vitalcart/storefront-backend/api/controllers/auth"
	ordercontrollers "github.com/vitalcart/storefront-backend/api/controllers/orders"
	paymentcontrollers "github.com/vitalcart/storefront-backend/api/controllers/payments"
	webhookcontrollers "github.com/vitalcart/storefront-backend/api/controllers/webhooks"
	"github.com/vitalcart/storefront-backend/api/middleware"
	"github.com/vitalcart/storefront-backend/internal/auth"
	"github.com/vitalcart/storefront-backend/internal/checkout"
	"github.com/vitalcart/storefront-backend/internal/orders"
	"github.com/vitalcart/storefront-backend/pkg/auth/session"
	"github.com/vitalcart/storefront-backend/pkg/config"
	"github.com/vitalcart/storefront-backend/pkg/enums"
	"github.com/vitalcart/storefront-backend/pkg/logger"
	"github.com/vitalcart/storefront-backend/pkg/metrics"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

// Cache is the redis surface the HTTP layer uses for probes, rate limits and idempotency.
type Cache interface {
	Ping(ctx context.Context) error
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	IdempotencyKey(scope, id string) string
}

type paymentService interface {
	paymentcontrollers.Service
	SyncTokens(ctx context.Context, customerID string) (int, error)
}

type replayGuard interface {
	CheckAndMark(ctx context.Context, eventKey string) (bool, error)
	Release(ctx context.Context, eventKey string) error
}

// Dependencies are the services the HTTP layer dispatches to.
type Dependencies struct {
	DB       controllers.Pinger
	Redis    Cache
	Sessions sessionManager
	Gatherer prometheus.Gatherer
	Metrics  *metrics.Storefront

	Auth             auth.Service
	Checkout         checkout.Service
	CheckoutSessions controllers.SessionOpener
	Orders           orders.Service
	Payments         paymentService
	Uploads          controllers.PhotoUploader
	GenieWebhook     webhookcontrollers.GenieWebhookService
	GenieReplay      replayGuard
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.Origins()),
	)

	limits := cfg.AuthRateLimit
	loginPolicy := middleware.LoginPolicy(limits.LoginWindow, limits.LoginIPLimit, limits.LoginEmailLimit)
	signupPolicy := middleware.SignupPolicy(limits.SignupWindow, limits.SignupIPLimit, limits.SignupEmailLimit)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, readinessChecks(deps), logg))
	})
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Get("/genie", webhookcontrollers.GenieWebhookHealth())
		r.Post("/genie", webhookcontrollers.GenieWebhook(deps.GenieWebhook, cfg.Genie.APIKey, deps.GenieReplay, deps.Metrics, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.RateLimit(loginPolicy, deps.Redis, logg)).Post("/login", authcontrollers.Login(deps.Auth, logg))
		r.Post("/logout", authcontrollers.Logout(deps.Sessions, cfg.JWT, logg))
		r.Post("/refresh", authcontrollers.Refresh(deps.Sessions, cfg.JWT, logg))
	})

	// Guests and signed-in customers share the checkout entry points.
	r.Group(func(r chi.Router) {
		r.Use(middleware.OptionalAuth(cfg.JWT, deps.Sessions, logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		r.With(middleware.RateLimit(signupPolicy, deps.Redis, logg)).
			Post("/api/v1/checkout", controllers.Checkout(deps.Checkout, logg))
		r.Post("/api/v1/checkout/sessions", controllers.CreateCheckoutSession(deps.CheckoutSessions, logg))
		r.Post("/api/v1/questionnaires/uploads", controllers.QuestionnaireUpload(deps.Uploads, logg))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		r.Post("/api/v1/checkout/orders", controllers.PlaceOrder(deps.Checkout, logg))
		r.Post("/api/v1/payments/consultation", paymentcontrollers.StartConsultation(deps.Payments, logg))
		r.Get("/api/v1/payment-methods", paymentcontrollers.ListMethods(deps.Payments, logg))
		r.Get("/api/v1/orders", ordercontrollers.List(deps.Orders, logg))
		r.Get("/api/v1/orders/{orderId}", ordercontrollers.Detail(deps.Orders, logg))
		r.Post("/api/v1/orders/{orderId}/payments", paymentcontrollers.StartProduct(deps.Payments, logg))

		r.With(middleware.RequireRole(logg, enums.UserRoleSupport)).
			Post("/api/v1/support/customers/{customerId}/payment-methods/sync", paymentcontrollers.SyncCustomerTokens(deps.Payments, logg))
	})

	return r
}

func readinessChecks(deps Dependencies) map[string]controllers.Pinger {
	checks := map[string]controllers.Pinger{}
	if deps.DB != nil {
		checks["db"] = deps.DB
	}
	if deps.Redis != nil {
		checks["redis"] = deps.Redis
	}
	return checks
}
