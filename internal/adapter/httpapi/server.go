package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/autodca/autodca-backend/internal/domain"
	"github.com/autodca/autodca-backend/internal/usecase/executor"
	"github.com/autodca/autodca-backend/internal/usecase/overview"
	"github.com/autodca/autodca-backend/internal/usecase/sessionkey"
	"github.com/autodca/autodca-backend/internal/usecase/vault"
)

// Server exposes the vault and session key use cases over HTTP
type Server struct {
	SessionKeys *sessionkey.Service
	Vaults      *vault.Service
	Coordinator *executor.Coordinator
	Overview    *overview.Service
	Executions  domain.ExecutionRepository
	Logger      *zap.Logger
}

// NewServer creates a new HTTP server instance
func NewServer(
	sessionKeys *sessionkey.Service,
	vaults *vault.Service,
	coordinator *executor.Coordinator,
	overviewSvc *overview.Service,
	executions domain.ExecutionRepository,
	logger *zap.Logger,
) *Server {
	return &Server{
		SessionKeys: sessionKeys,
		Vaults:      vaults,
		Coordinator: coordinator,
		Overview:    overviewSvc,
		Executions:  executions,
		Logger:      logger,
	}
}

// Router builds the gin engine with all routes registered
func (s *Server) Router(verifier domain.IdentityVerifier) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1", AuthMiddleware(verifier))
	{
		v1.POST("/session-keys", s.createSessionKey)
		v1.GET("/session-keys", s.listSessionKeys)
		v1.GET("/session-keys/:id", s.getSessionKey)
		v1.PATCH("/session-keys/:id/limits", s.updateSessionKeyLimits)
		v1.POST("/session-keys/:id/revoke", s.revokeSessionKey)
		v1.DELETE("/session-keys/:id", s.closeSessionKey)

		v1.POST("/vaults", s.createVault)
		v1.GET("/vaults", s.listVaults)
		v1.GET("/vaults/:id", s.getVault)
		v1.POST("/vaults/:id/deposit", s.depositToVault)
		v1.POST("/vaults/:id/pause", s.pauseVault)
		v1.POST("/vaults/:id/resume", s.resumeVault)
		v1.POST("/vaults/:id/execute", s.executeVaultCycle)
		v1.GET("/vaults/:id/executions", s.listVaultExecutions)
		v1.DELETE("/vaults/:id", s.closeVault)

		v1.GET("/portfolio", s.getPortfolio)
	}

	return r
}

// mapError converts domain errors to HTTP responses
func mapError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.Is(err, domain.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})

	case errors.Is(err, domain.ErrSessionKeyNotActive),
		errors.Is(err, domain.ErrSessionKeyExpired),
		errors.Is(err, domain.ErrPerTxLimitExceeded),
		errors.Is(err, domain.ErrTotalLimitExceeded),
		errors.Is(err, domain.ErrTargetNotAllowed):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})

	case errors.Is(err, domain.ErrVaultNotActive),
		errors.Is(err, domain.ErrVaultNotPaused),
		errors.Is(err, domain.ErrTooEarlyToExecute),
		errors.Is(err, domain.ErrAllCyclesCompleted),
		errors.Is(err, domain.ErrInsufficientBalance):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	case errors.Is(err, domain.ErrSlippageExceeded):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})

	case errors.Is(err, domain.ErrTooManyTargets):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case isValidationError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// isValidationError matches plain input-validation messages from the services
func isValidationError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "must be") ||
		strings.Contains(msg, "required") ||
		strings.Contains(msg, "must differ") ||
		strings.Contains(msg, "invalid")
}
