package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/autodca/autodca-backend/internal/domain"
	"github.com/autodca/autodca-backend/internal/usecase/sessionkey"
)

type createSessionKeyRequest struct {
	Delegate       string    `json:"delegate" binding:"required"`
	PerTxCap       string    `json:"per_tx_cap" binding:"required"`
	TotalCap       string    `json:"total_cap" binding:"required"`
	ExpiresAt      time.Time `json:"expires_at" binding:"required"`
	AllowedTargets []string  `json:"allowed_targets"`
}

type updateLimitsRequest struct {
	PerTxCap string `json:"per_tx_cap" binding:"required"`
	TotalCap string `json:"total_cap" binding:"required"`
}

type sessionKeyResponse struct {
	ID             string    `json:"id"`
	Owner          string    `json:"owner"`
	Delegate       string    `json:"delegate"`
	PerTxCap       string    `json:"per_tx_cap"`
	TotalCap       string    `json:"total_cap"`
	Spent          string    `json:"spent"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	AllowedTargets []string  `json:"allowed_targets"`
	Active         bool      `json:"active"`
}

func sessionKeyToResponse(key *domain.SessionKey) sessionKeyResponse {
	return sessionKeyResponse{
		ID:             key.ID.String(),
		Owner:          key.Owner,
		Delegate:       key.Delegate,
		PerTxCap:       key.PerTxCap.String(),
		TotalCap:       key.TotalCap.String(),
		Spent:          key.Spent.String(),
		CreatedAt:      key.CreatedAt,
		ExpiresAt:      key.ExpiresAt,
		AllowedTargets: key.AllowedTargets.List(),
		Active:         key.Active,
	}
}

func (s *Server) createSessionKey(c *gin.Context) {
	var req createSessionKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	perTxCap, err := decimal.NewFromString(req.PerTxCap)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid per_tx_cap format"})
		return
	}

	totalCap, err := decimal.NewFromString(req.TotalCap)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid total_cap format"})
		return
	}

	key, err := s.SessionKeys.Create(c.Request.Context(), sessionkey.CreateInput{
		Owner:          CallerAddress(c),
		Delegate:       req.Delegate,
		PerTxCap:       perTxCap,
		TotalCap:       totalCap,
		ExpiresAt:      req.ExpiresAt,
		AllowedTargets: req.AllowedTargets,
	})
	if err != nil {
		mapError(c, err)
		return
	}

	c.JSON(http.StatusCreated, sessionKeyToResponse(key))
}

func (s *Server) listSessionKeys(c *gin.Context) {
	keys, err := s.SessionKeys.ListByOwner(c.Request.Context(), CallerAddress(c))
	if err != nil {
		mapError(c, err)
		return
	}

	out := make([]sessionKeyResponse, 0, len(keys))
	for _, key := range keys {
		out = append(out, sessionKeyToResponse(key))
	}

	c.JSON(http.StatusOK, gin.H{"session_keys": out, "total": len(out)})
}

func (s *Server) getSessionKey(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session key id"})
		return
	}

	key, err := s.SessionKeys.Get(c.Request.Context(), id, CallerAddress(c))
	if err != nil {
		mapError(c, err)
		return
	}

	c.JSON(http.StatusOK, sessionKeyToResponse(key))
}

func (s *Server) updateSessionKeyLimits(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session key id"})
		return
	}

	var req updateLimitsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	perTxCap, err := decimal.NewFromString(req.PerTxCap)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid per_tx_cap format"})
		return
	}

	totalCap, err := decimal.NewFromString(req.TotalCap)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid total_cap format"})
		return
	}

	result, err := s.SessionKeys.UpdateLimits(c.Request.Context(), sessionkey.UpdateLimitsInput{
		KeyID:    id,
		Caller:   CallerAddress(c),
		PerTxCap: perTxCap,
		TotalCap: totalCap,
	})
	if err != nil {
		mapError(c, err)
		return
	}

	if result.BelowSpent {
		s.Logger.Warn("session key total cap set below spent amount, key is permanently exhausted",
			zap.String("session_key_id", id.String()),
			zap.String("spent", result.Key.Spent.String()),
			zap.String("total_cap", result.Key.TotalCap.String()),
		)
	}

	c.JSON(http.StatusOK, gin.H{
		"session_key": sessionKeyToResponse(result.Key),
		"below_spent": result.BelowSpent,
	})
}

func (s *Server) revokeSessionKey(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session key id"})
		return
	}

	if err := s.SessionKeys.Revoke(c.Request.Context(), id, CallerAddress(c)); err != nil {
		mapError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"revoked": true})
}

func (s *Server) closeSessionKey(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session key id"})
		return
	}

	if err := s.SessionKeys.Close(c.Request.Context(), id, CallerAddress(c)); err != nil {
		mapError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"closed": true})
}
