package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"errand-marketplace/internal/config"
	appmiddleware "errand-marketplace/internal/middleware"
	"errand-marketplace/internal/models"
	"errand-marketplace/internal/modules/auth"
	"errand-marketplace/internal/modules/errand"
	"errand-marketplace/pkg/geo"
	"errand-marketplace/pkg/notify"
	"errand-marketplace/pkg/payment"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	ctx := context.Background()

	dbpool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connecting to database: %v", err)
	}
	defer dbpool.Close()
	if err := dbpool.Ping(ctx); err != nil {
		log.Fatalf("pinging database: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("pinging redis: %v", err)
	}

	notifier := buildNotifier(ctx, cfg)

	authRepo := auth.NewRepository(dbpool)
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTRefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	authSvc := auth.NewService(authRepo, tokens, notifier, cfg.AppBaseURL)
	authHandler := auth.NewHandler(authSvc)

	runnerIndex := geo.NewRunnerIndex(rdb, cfg.RunnerGeoKey)
	payments := payment.NewStripeService(cfg.StripeAPIKey)

	errandRepo := errand.NewRepository(dbpool)
	errandSvc := errand.NewService(errandRepo, authRepo, notifier, runnerIndex, payments, cfg.Currency)
	errandHandler := errand.NewHandler(errandSvc)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{cfg.ClientOrigin},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
	}))
	e.Use(appmiddleware.Metrics())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, models.MessageResponse("ok"))
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")

	authGroup := api.Group("/auth")

	protected := api.Group("")
	protected.Use(appmiddleware.JWT(tokens.AccessSecret()))
	protected.Use(appmiddleware.LoadUser(authSvc))

	requireCustomer := appmiddleware.RequireRole(models.RoleCustomer)
	requireRunner := appmiddleware.RequireRole(models.RoleRunner)
	requireAdmin := appmiddleware.RequireRole(models.RoleAdmin)

	authHandler.RegisterRoutes(authGroup, protected.Group("/admin"), requireAdmin)
	errandHandler.RegisterRoutes(protected.Group("/errands"), requireCustomer, requireRunner, requireAdmin)

	go func() {
		if err := e.Start(":" + cfg.ServerPort); err != nil && err != http.ErrServerClosed {
			log.Fatalf("starting server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutting down server: %v", err)
	}
}

// buildNotifier wires the email and SMS transports. Missing credentials fall
// back to log-only delivery so local development works without AWS or Twilio
// accounts.
func buildNotifier(ctx context.Context, cfg *config.Config) *notify.Service {
	var email notify.Sender = &notify.LogSender{Channel: notify.ChannelEmail}
	if cfg.EmailFrom != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			log.Printf("WARN: AWS config unavailable, email falls back to log delivery: %v", err)
		} else {
			email = notify.NewEmailSender(sesv2.NewFromConfig(awsCfg), cfg.EmailFrom)
		}
	}

	var sms notify.Sender = &notify.LogSender{Channel: notify.ChannelSMS}
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
		sms = notify.NewSMSSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
	}

	return notify.NewService(email, sms)
}
