// Package httpapi serves the player and admin HTTP surface of the awards service.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tyemirov/tauth/pkg/sessionvalidator"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/gamification/internal/config"
	"github.com/MarkoPoloResearchLab/gamification/pkg/ledger"
)

const claimsContextKey = "auth_claims"

// Dependencies are the collaborators the router needs.
type Dependencies struct {
	Service   *ledger.Service
	Validator *sessionvalidator.Validator
	Gatherer  prometheus.Gatherer
	Logger    *zap.Logger
}

type httpHandler struct {
	service           *ledger.Service
	logger            *zap.Logger
	cfg               config.Config
	completionLimiter *limiter.Limiter
}

// NewRouter builds the gin engine. cfg must already be validated.
func NewRouter(cfg config.Config, deps Dependencies) (*gin.Engine, error) {
	if deps.Service == nil {
		return nil, fmt.Errorf("%w: service dependency is nil", ledger.ErrInvalidServiceConfig)
	}
	if deps.Validator == nil {
		return nil, fmt.Errorf("%w: session validator is nil", ledger.ErrInvalidServiceConfig)
	}
	rate, err := limiter.NewRateFromFormatted(cfg.CompletionRateLimit)
	if err != nil {
		return nil, fmt.Errorf("completion rate limit: %w", err)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	handler := &httpHandler{
		service:           deps.Service,
		logger:            logger,
		cfg:               cfg,
		completionLimiter: limiter.New(memory.NewStore(), rate),
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	api.Use(deps.Validator.GinMiddleware(claimsContextKey))
	api.POST("/completions", handler.rateLimitCompletions, handler.handleCompletion)
	api.GET("/wallet", handler.handleWallet)
	api.GET("/badges", handler.handleBadges)
	api.GET("/ranks/:currency", handler.handleRankProgress)
	api.GET("/ranks/:currency/distribution", handler.handleRankDistribution)
	api.GET("/streak", handler.handleStreak)
	api.GET("/leaderboard/:currency", handler.handleLeaderboard)
	api.GET("/entries", handler.handleEntries)

	admin := api.Group("/admin")
	admin.Use(handler.requireAdmin)
	admin.POST("/credits", handler.handleManualCredit)
	admin.POST("/reconcile", handler.handleReconcile)

	return router, nil
}

// Run serves handler on addr until ctx is cancelled.
func Run(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http api listening", zap.String("addr", addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("http shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (handler *httpHandler) rateLimitCompletions(ctx *gin.Context) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	limit, err := handler.completionLimiter.Get(ctx.Request.Context(), claims.GetUserID())
	if err != nil {
		handler.logger.Error("rate limit check failed", zap.String("user_id", claims.GetUserID()), zap.Error(err))
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse("internal", "rate limit check failed"))
		return
	}
	if limit.Reached {
		handler.logger.Warn("completion rate limit reached", zap.String("user_id", claims.GetUserID()), zap.Int64("limit", limit.Limit))
		ctx.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse("rate_limited", "too many completions"))
		return
	}
	ctx.Next()
}

func (handler *httpHandler) requireAdmin(ctx *gin.Context) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	for _, role := range claims.GetUserRoles() {
		if role == handler.cfg.AdminRole {
			ctx.Next()
			return
		}
	}
	ctx.AbortWithStatusJSON(http.StatusForbidden, errorResponse("forbidden", "admin role required"))
}

func getClaims(ctx *gin.Context) *sessionvalidator.Claims {
	claimsValue, ok := ctx.Get(claimsContextKey)
	if !ok {
		return nil
	}
	claims, _ := claimsValue.(*sessionvalidator.Claims)
	return claims
}
