package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lutong-bahay/api/internal/config"
	"github.com/lutong-bahay/api/internal/database"
	"github.com/lutong-bahay/api/internal/enum"
	"github.com/lutong-bahay/api/internal/gateway"
	"github.com/lutong-bahay/api/internal/handler"
	mw "github.com/lutong-bahay/api/internal/middleware"
	"github.com/lutong-bahay/api/internal/service"
	"github.com/shopspring/decimal"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication and role-based middleware as needed.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173",           // storefront dev server
			"https://lutongbahay.ph",          // production storefront
			"https://admin.lutongbahay.ph",    // production admin
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	deliveryFee, err := decimal.NewFromString(cfg.DeliveryFee)
	if err != nil {
		log.Fatalf("invalid DELIVERY_FEE %q: %v", cfg.DeliveryFee, err)
	}

	var walletGateway service.WalletGateway
	if cfg.WalletGatewayURL != "" {
		walletGateway = gateway.NewClient(cfg.WalletGatewayURL)
	}

	orderService := service.NewOrderService(
		pool,
		func(db database.DBTX) service.OrderStore { return database.New(db) },
		deliveryFee,
		walletGateway,
	)
	paymentService := service.NewPaymentService(
		pool,
		func(db database.DBTX) service.PaymentStore { return database.New(db) },
	)

	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	menuHandler := handler.NewMenuHandler(queries)
	orderHandler := handler.NewOrderHandler(orderService, queries, cfg.StrictStatusFlow)
	paymentHandler := handler.NewPaymentHandler(paymentService)

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})
	authHandler.RegisterRoutes(r)
	menuHandler.RegisterPublicRoutes(r)
	paymentHandler.RegisterCallbackRoutes(r)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		authHandler.RegisterProfileRoutes(r)
		orderHandler.RegisterRoutes(r)
		paymentHandler.RegisterRoutes(r)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleAdmin))

			menuHandler.RegisterAdminRoutes(r)
			orderHandler.RegisterAdminRoutes(r)
			paymentHandler.RegisterAdminRoutes(r)
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}
