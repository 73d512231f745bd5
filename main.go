package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"uniLodgeAPI/handlers"
	"uniLodgeAPI/internal/cache"
	"uniLodgeAPI/internal/notification"
	"uniLodgeAPI/internal/subscription"
	"uniLodgeAPI/internal/workers"
	"uniLodgeAPI/middleware"
	"uniLodgeAPI/services"
)

var (
	dbPool              *pgxpool.Pool
	userService         *services.UserService
	subscriptionService *services.SubscriptionService
	paymentService      *services.PaymentService
	promoService        *services.PromoService
	hostelService       *services.HostelService
	schoolService       *services.SchoolService
	notificationService *services.NotificationService
	paystackService     *services.PaystackService
	fcmService          *notification.FCMService
	accessGate          *middleware.AccessGate
	paystackSecretKey   string
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	clerkSecretKey := os.Getenv("CLERK_SECRET_KEY")
	if clerkSecretKey == "" {
		log.Fatal("CLERK_SECRET_KEY environment variable is not set")
	}
	clerk.SetKey(clerkSecretKey)
	log.Println("Clerk initialized successfully")

	paystackSecretKey = os.Getenv("PAYSTACK_SECRET_KEY")
	if paystackSecretKey == "" {
		log.Fatal("PAYSTACK_SECRET_KEY environment variable is not set")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		log.Fatal("Failed to parse database URL:", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	dbPool, err = pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Fatal("Failed to create connection pool:", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	log.Println("Successfully connected to database")

	userService = services.NewUserService(dbPool)
	subscriptionService = services.NewSubscriptionService(dbPool)
	paymentService = services.NewPaymentService(dbPool)
	promoService = services.NewPromoService(dbPool)
	hostelService = services.NewHostelService(dbPool)
	schoolService = services.NewSchoolService(dbPool)
	notificationService = services.NewNotificationService(userService)
	paystackService = services.NewPaystackService(paystackSecretKey)

	fcmService, err = notification.NewFCMService("./serviceAccountKey.json")
	if err != nil {
		log.Printf("Warning: Could not initialize FCM: %v", err)
	} else {
		notificationService.SetPushProvider(fcmService)
		log.Println("FCM Push Provider initialized successfully")
	}

	// The two entitlement caches. TTLs trade staleness for load: 30s keeps
	// a just-expired subscriber out quickly, 5m is fine for role flips.
	subscriptionCache := cache.New[*subscription.Subscription](30 * time.Second)
	adminCache := cache.New[bool](5 * time.Minute)
	accessGate = middleware.NewAccessGate(subscriptionService, userService, subscriptionCache, adminCache)

	middleware.InitPrometheus()
}

func main() {
	defer func() {
		log.Println("Closing database connection pool...")
		dbPool.Close()
	}()

	callbackURL := os.Getenv("APP_PUBLIC_URL")
	if callbackURL == "" {
		callbackURL = "https://unilodge.app"
	}
	callbackURL += "/payments/callback"

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService)
	hostelHandler := handlers.NewHostelHandler(hostelService, userService)
	schoolHandler := handlers.NewSchoolHandler(schoolService)
	subscriptionHandler := handlers.NewSubscriptionHandler(subscriptionService, userService, accessGate)
	adminHandler := handlers.NewAdminHandler(hostelService, schoolService, promoService, subscriptionService, paymentService)
	webhookHandler := handlers.NewWebhookHandler(userService)
	paymentHandler := handlers.NewPaymentHandler(
		paymentService,
		subscriptionService,
		paystackService,
		promoService,
		userService,
		notificationService,
		accessGate,
		paystackSecretKey,
		callbackURL,
	)

	r := mux.NewRouter()

	go middleware.CleanupVisitors()

	r.Use(middleware.RateLimitMiddleware)
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(promhttp.Handler()))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := dbPool.Ping(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "uniLodge-api"}`))
	}).Methods("GET")

	// Provider-facing routes. No auth middleware: the Clerk webhook carries
	// a svix signature, the Paystack webhook an HMAC, and the callback is a
	// browser redirect that may arrive without a session.
	r.HandleFunc("/webhooks/clerk", webhookHandler.HandleClerkWebhook).Methods("POST")
	r.HandleFunc("/webhooks/paystack", paymentHandler.HandlePaystackWebhook).Methods("POST")
	r.HandleFunc("/payments/callback", paymentHandler.HandleCallback).Methods("GET")

	// Browser landing for the callback redirect. Auth gate, not API auth: an
	// unauthenticated browser gets bounced to login and returned here.
	r.Handle("/dashboard", accessGate.RequireAuth(http.HandlerFunc(subscriptionHandler.Dashboard))).Methods("GET")

	// -------------------------------------------------------------------------
	// API V1 SUBROUTER
	// -------------------------------------------------------------------------
	api := r.PathPrefix("/api/v1").Subrouter()

	// Public: the subscribe/onboarding screens need these before login.
	api.HandleFunc("/schools", schoolHandler.ListSchools).Methods("GET")
	api.HandleFunc("/schools/{id}", schoolHandler.GetSchool).Methods("GET")
	api.HandleFunc("/plans", subscriptionHandler.GetPlans).Methods("GET")

	// -------------------------------------------------------------------------
	// PROTECTED ROUTES (REQUIRE AUTH HEADER)
	// -------------------------------------------------------------------------
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.ClerkAuthMiddleware)

	protected.HandleFunc("/user", userHandler.GetProfile).Methods("GET")
	protected.HandleFunc("/user/update-profile", userHandler.UpdateProfile).Methods("PUT")
	protected.HandleFunc("/user/delete-account", userHandler.DeleteAccount).Methods("DELETE")
	protected.HandleFunc("/user/register-device", userHandler.RegisterDevice).Methods("POST")

	protected.HandleFunc("/subscriptions", subscriptionHandler.CreateSubscription).Methods("POST")
	protected.HandleFunc("/subscriptions/me", subscriptionHandler.GetMySubscription).Methods("GET")
	protected.HandleFunc("/subscriptions/{id}/cancel", subscriptionHandler.CancelSubscription).Methods("POST")

	protected.HandleFunc("/payments/initialize", paymentHandler.InitializePayment).Methods("POST")

	protected.HandleFunc("/favorites", hostelHandler.GetFavorites).Methods("GET")
	protected.HandleFunc("/favorites/{id}", hostelHandler.AddFavorite).Methods("POST")
	protected.HandleFunc("/favorites/{id}", hostelHandler.RemoveFavorite).Methods("DELETE")

	// -------------------------------------------------------------------------
	// SUBSCRIPTION-GATED DISCOVERY (REDIRECTS, NOT 401s)
	// -------------------------------------------------------------------------
	gated := api.PathPrefix("/hostels").Subrouter()
	gated.Use(accessGate.RequireSubscription)

	gated.HandleFunc("", hostelHandler.ListHostels).Methods("GET")
	gated.HandleFunc("/compare", hostelHandler.CompareHostels).Methods("POST")
	gated.HandleFunc("/{id}", hostelHandler.GetHostel).Methods("GET")
	gated.HandleFunc("/{id}/contact", hostelHandler.GetContact).Methods("GET")
	gated.HandleFunc("/{id}/share", hostelHandler.ShareHostel).Methods("GET")

	// -------------------------------------------------------------------------
	// ADMIN BACK-OFFICE
	// -------------------------------------------------------------------------
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(accessGate.RequireAdmin)

	admin.HandleFunc("/hostels", adminHandler.CreateHostel).Methods("POST")
	admin.HandleFunc("/hostels/{id}", adminHandler.UpdateHostel).Methods("PUT")
	admin.HandleFunc("/hostels/{id}", adminHandler.DeleteHostel).Methods("DELETE")

	admin.HandleFunc("/schools", adminHandler.CreateSchool).Methods("POST")
	admin.HandleFunc("/schools/{id}", adminHandler.UpdateSchool).Methods("PUT")
	admin.HandleFunc("/schools/{id}", adminHandler.DeleteSchool).Methods("DELETE")

	admin.HandleFunc("/promo-codes", adminHandler.CreatePromoCode).Methods("POST")
	admin.HandleFunc("/promo-codes", adminHandler.ListPromoCodes).Methods("GET")
	admin.HandleFunc("/promo-codes/{id}", adminHandler.SetPromoCodeActive).Methods("PUT")
	admin.HandleFunc("/promo-codes/{id}", adminHandler.DeletePromoCode).Methods("DELETE")

	admin.HandleFunc("/subscriptions", adminHandler.ListSubscriptions).Methods("GET")
	admin.HandleFunc("/subscriptions/{id}/payments", adminHandler.ListSubscriptionPayments).Methods("GET")
	admin.HandleFunc("/subscriptions/{id}/status", adminHandler.UpdateSubscriptionStatus).Methods("PUT")

	// Background expiry sweep
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go workers.NewExpirySweeper(subscriptionService, notificationService, time.Hour).Run(sweepCtx)

	// CORS configuration
	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorilllaHandlers.AllowCredentials(),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3333"
	}
	port = ":" + port

	server := http.Server{
		Addr:         port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server:", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	sig := <-sigChan
	log.Println("Got signal:", sig)

	stopSweep()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server shutdown complete")
}
