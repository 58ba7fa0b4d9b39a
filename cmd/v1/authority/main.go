package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelgin "go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/RoseWrightdev/conference-authority/internal/v1/auth"
	"github.com/RoseWrightdev/conference-authority/internal/v1/authority"
	"github.com/RoseWrightdev/conference-authority/internal/v1/bus"
	"github.com/RoseWrightdev/conference-authority/internal/v1/config"
	"github.com/RoseWrightdev/conference-authority/internal/v1/focus"
	"github.com/RoseWrightdev/conference-authority/internal/v1/health"
	"github.com/RoseWrightdev/conference-authority/internal/v1/logging"
	"github.com/RoseWrightdev/conference-authority/internal/v1/middleware"
	"github.com/RoseWrightdev/conference-authority/internal/v1/ratelimit"
	"github.com/RoseWrightdev/conference-authority/internal/v1/redirect"
	"github.com/RoseWrightdev/conference-authority/internal/v1/tracing"
	"github.com/RoseWrightdev/conference-authority/internal/v1/types"
	"go.uber.org/zap"
)

func main() {
	for _, path := range []string{".env", "../../../.env", "../../.env"} {
		if err := godotenv.Load(path); err == nil {
			break
		}
	}

	cfg, err := config.ValidateEnv()
	if err != nil {
		panic(err)
	}

	if err := logging.Initialize(cfg.GoEnv != "production"); err != nil {
		panic(err)
	}
	ctx := context.Background()
	logging.Info(ctx, "starting conference authority service", zap.String("port", cfg.Port))

	if cfg.OTELCollectorAddr != "" {
		tp, err := tracing.InitTracer(ctx, "conference-authority", cfg.OTELCollectorAddr)
		if err != nil {
			logging.Error(ctx, "failed to initialize tracer, continuing without tracing", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = tp.Shutdown(shutdownCtx)
			}()
		}
	}

	var redisService *bus.Service
	if cfg.RedisEnabled {
		redisService, err = bus.NewService(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logging.Error(ctx, "failed to connect to redis, continuing in single-instance mode", zap.Error(err))
			redisService = nil
		} else {
			defer redisService.Close()
		}
	}

	rateLimiter, err := ratelimit.NewRateLimiter(cfg, redisService.Client())
	if err != nil {
		logging.Fatal(ctx, "failed to initialize rate limiter", zap.Error(err))
	}

	auth0, err := newAuthorityFromConfig(cfg)
	if err != nil {
		logging.Fatal(ctx, "failed to initialize authority", zap.Error(err))
	}

	focusManager := focus.NewManager()
	auth0.AddIdentityBindListener(types.IdentityBindListenerFunc(func(bound types.AuthenticationState) {
		redisService.PublishIdentityBound(ctx, bus.IdentityBoundEvent{
			ParticipantAddress: string(bound.ParticipantAddress),
			ExternalIdentity:   string(bound.AuthenticatedIdentity),
			RoomName:           string(bound.RoomName),
			AuthTimestamp:      bound.AuthenticatedAt,
		})
	}))

	auth0.Start(focusManager)
	defer auth0.Stop()

	var idTokenValidator types.TokenValidator
	if cfg.IDPDomain != "" && cfg.IDPAudience != "" {
		v, err := auth.NewValidator(ctx, cfg.IDPDomain, cfg.IDPAudience)
		if err != nil {
			logging.Warn(ctx, "failed to initialize IDP token validator, id_token path disabled", zap.Error(err))
		} else {
			idTokenValidator = v
		}
	}

	redirectOpts := []redirect.Option{}
	if idTokenValidator != nil {
		redirectOpts = append(redirectOpts, redirect.WithTokenValidator(idTokenValidator))
	}
	redirectHandler := redirect.NewHandler(auth0, redirectOpts...)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(otelgin.Middleware("conference-authority"))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	healthHandler := health.NewHandler(redisService)
	router.GET("/health/live", healthHandler.Liveness)
	router.GET("/health/ready", healthHandler.Readiness)

	redirect.RegisterRoutes(router, redirectHandler)

	authGroup := router.Group("/auth")
	authGroup.Use(rateLimiter.Middleware("participant_address"))
	authGroup.GET("/issue-url", func(c *gin.Context) {
		participantAddress := c.Query("participant_address")
		roomName := c.Query("room_name")
		if participantAddress == "" || roomName == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "participant_address and room_name are required"})
			return
		}

		url, err := auth0.IssueURL(c.Request.Context(), types.ParticipantAddress(participantAddress), types.RoomName(roomName))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"url": url})
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logging.Info(ctx, "http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal(ctx, "server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error(ctx, "server forced to shutdown", zap.Error(err))
	}

	logging.Info(ctx, "server exited")
}

func newAuthorityFromConfig(cfg *config.Config) (*authority.Authority, error) {
	return authority.NewAuthority(authority.Config{
		URLTemplate:        cfg.URLTemplate,
		ReservedRooms:      cfg.ReservedRooms,
		TokenLifetime:      cfg.TokenLifetime,
		PreAuthLifetime:    cfg.PreAuthLifetime,
		ExpiryPollInterval: cfg.ExpiryPollInterval,
	})
}
