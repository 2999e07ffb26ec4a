package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/autodca/autodca-backend/internal/domain"
	"github.com/autodca/autodca-backend/internal/usecase/executor"
	"github.com/autodca/autodca-backend/internal/usecase/vault"
)

type createVaultRequest struct {
	SourceAsset      string `json:"source_asset" binding:"required"`
	DestAsset        string `json:"dest_asset" binding:"required"`
	AmountPerCycle   string `json:"amount_per_cycle" binding:"required"`
	FrequencySeconds int64  `json:"frequency_seconds" binding:"required"`
	TotalCycles      uint32 `json:"total_cycles" binding:"required"`
	ExchangeTarget   string `json:"exchange_target" binding:"required"`
	SessionKeyID     string `json:"session_key_id"`
}

type depositRequest struct {
	Amount string `json:"amount" binding:"required"`
}

type executeRequest struct {
	SessionKeyID string `json:"session_key_id" binding:"required"`
	MinAmountOut string `json:"min_amount_out" binding:"required"`
}

type vaultResponse struct {
	ID               string    `json:"id"`
	Owner            string    `json:"owner"`
	SourceAsset      string    `json:"source_asset"`
	DestAsset        string    `json:"dest_asset"`
	AmountPerCycle   string    `json:"amount_per_cycle"`
	FrequencySeconds int64     `json:"frequency_seconds"`
	TotalCycles      uint32    `json:"total_cycles"`
	ExecutedCycles   uint32    `json:"executed_cycles"`
	CustodyBalance   string    `json:"custody_balance"`
	TotalDeposited   string    `json:"total_deposited"`
	TotalReceived    string    `json:"total_received"`
	LastExecution    time.Time `json:"last_execution"`
	NextExecution    time.Time `json:"next_execution"`
	Status           string    `json:"status"`
	ExchangeTarget   string    `json:"exchange_target"`
	SessionKeyID     string    `json:"session_key_id,omitempty"`
}

type executionResponse struct {
	ID         string    `json:"id"`
	VaultID    string    `json:"vault_id"`
	Cycle      uint32    `json:"cycle"`
	AmountIn   string    `json:"amount_in"`
	AmountOut  string    `json:"amount_out"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	ExecutedAt time.Time `json:"executed_at"`
}

func vaultToResponse(v *domain.Vault) vaultResponse {
	resp := vaultResponse{
		ID:               v.ID.String(),
		Owner:            v.Owner,
		SourceAsset:      v.SourceAsset,
		DestAsset:        v.DestAsset,
		AmountPerCycle:   v.AmountPerCycle.String(),
		FrequencySeconds: v.FrequencySeconds,
		TotalCycles:      v.TotalCycles,
		ExecutedCycles:   v.ExecutedCycles,
		CustodyBalance:   v.CustodyBalance.String(),
		TotalDeposited:   v.TotalDeposited.String(),
		TotalReceived:    v.TotalReceived.String(),
		LastExecution:    v.LastExecution,
		NextExecution:    v.NextExecution,
		Status:           string(v.Status),
		ExchangeTarget:   v.ExchangeTarget,
	}
	if v.SessionKeyID != nil {
		resp.SessionKeyID = v.SessionKeyID.String()
	}
	return resp
}

func executionToResponse(e *domain.Execution) executionResponse {
	return executionResponse{
		ID:         e.ID.String(),
		VaultID:    e.VaultID.String(),
		Cycle:      e.Cycle,
		AmountIn:   e.AmountIn.String(),
		AmountOut:  e.AmountOut.String(),
		Status:     string(e.Status),
		Error:      e.Error,
		ExecutedAt: e.ExecutedAt,
	}
}

func (s *Server) createVault(c *gin.Context) {
	var req createVaultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	amount, err := decimal.NewFromString(req.AmountPerCycle)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount_per_cycle format"})
		return
	}

	var sessionKeyID *uuid.UUID
	if req.SessionKeyID != "" {
		id, err := uuid.Parse(req.SessionKeyID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session_key_id format"})
			return
		}
		sessionKeyID = &id
	}

	v, err := s.Vaults.Create(c.Request.Context(), vault.CreateInput{
		Owner:            CallerAddress(c),
		SourceAsset:      req.SourceAsset,
		DestAsset:        req.DestAsset,
		AmountPerCycle:   amount,
		FrequencySeconds: req.FrequencySeconds,
		TotalCycles:      req.TotalCycles,
		ExchangeTarget:   req.ExchangeTarget,
		SessionKeyID:     sessionKeyID,
	})
	if err != nil {
		mapError(c, err)
		return
	}

	c.JSON(http.StatusCreated, vaultToResponse(v))
}

func (s *Server) listVaults(c *gin.Context) {
	vaults, err := s.Vaults.ListByOwner(c.Request.Context(), CallerAddress(c))
	if err != nil {
		mapError(c, err)
		return
	}

	out := make([]vaultResponse, 0, len(vaults))
	for _, v := range vaults {
		out = append(out, vaultToResponse(v))
	}

	c.JSON(http.StatusOK, gin.H{"vaults": out, "total": len(out)})
}

func (s *Server) getVault(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid vault id"})
		return
	}

	v, err := s.Vaults.Get(c.Request.Context(), id, CallerAddress(c))
	if err != nil {
		mapError(c, err)
		return
	}

	c.JSON(http.StatusOK, vaultToResponse(v))
}

func (s *Server) depositToVault(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid vault id"})
		return
	}

	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount format"})
		return
	}

	v, err := s.Vaults.Deposit(c.Request.Context(), id, CallerAddress(c), amount)
	if err != nil {
		mapError(c, err)
		return
	}

	c.JSON(http.StatusOK, vaultToResponse(v))
}

func (s *Server) pauseVault(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid vault id"})
		return
	}

	v, err := s.Vaults.Pause(c.Request.Context(), id, CallerAddress(c))
	if err != nil {
		mapError(c, err)
		return
	}

	c.JSON(http.StatusOK, vaultToResponse(v))
}

func (s *Server) resumeVault(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid vault id"})
		return
	}

	v, err := s.Vaults.Resume(c.Request.Context(), id, CallerAddress(c))
	if err != nil {
		mapError(c, err)
		return
	}

	c.JSON(http.StatusOK, vaultToResponse(v))
}

func (s *Server) executeVaultCycle(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid vault id"})
		return
	}

	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	keyID, err := uuid.Parse(req.SessionKeyID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session_key_id format"})
		return
	}

	minOut, err := decimal.NewFromString(req.MinAmountOut)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid min_amount_out format"})
		return
	}

	result, err := s.Coordinator.ExecuteCycle(c.Request.Context(), executor.Input{
		VaultID:      id,
		SessionKeyID: keyID,
		Caller:       CallerAddress(c),
		MinAmountOut: minOut,
	})
	if err != nil {
		mapError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"vault":     vaultToResponse(result.Vault),
		"execution": executionToResponse(result.Execution),
	})
}

func (s *Server) listVaultExecutions(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid vault id"})
		return
	}

	// Owner check happens via the vault lookup
	if _, err := s.Vaults.Get(c.Request.Context(), id, CallerAddress(c)); err != nil {
		mapError(c, err)
		return
	}

	execs, err := s.Executions.ListByVault(c.Request.Context(), id)
	if err != nil {
		mapError(c, err)
		return
	}

	out := make([]executionResponse, 0, len(execs))
	for _, e := range execs {
		out = append(out, executionToResponse(e))
	}

	c.JSON(http.StatusOK, gin.H{"executions": out, "total": len(out)})
}

func (s *Server) closeVault(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid vault id"})
		return
	}

	residual, err := s.Vaults.Close(c.Request.Context(), id, CallerAddress(c))
	if err != nil {
		mapError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"closed": true, "returned_balance": residual.String()})
}

func (s *Server) getPortfolio(c *gin.Context) {
	result, err := s.Overview.GetPortfolio(c.Request.Context(), CallerAddress(c))
	if err != nil {
		mapError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"active_vaults":    result.ActiveVaults,
		"total_vaults":     result.TotalVaults,
		"custody_total":    result.CustodyTotal.String(),
		"total_deposited":  result.TotalDeposited.String(),
		"total_received":   result.TotalReceived.String(),
		"cycles_executed":  result.CyclesExecuted,
		"cycles_remaining": result.CyclesRemaining,
	})
}
