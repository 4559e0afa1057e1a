// internal/handler/scanner_handler.go
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"scanner-service/internal/scanner"
	"scanner-service/internal/utils"
)

// ScannerHandler exposes the scan session manager over HTTP. It is a
// thin bridge: all session, selection, and protocol logic lives in the
// scanner package.
type ScannerHandler struct {
	manager *scanner.Manager
	logger  *utils.ServiceLogger
}

// NewScannerHandler creates a new scanner handler
func NewScannerHandler(manager *scanner.Manager, logger *zap.Logger) *ScannerHandler {
	return &ScannerHandler{
		manager: manager,
		logger:  utils.NewServiceLogger(logger, "scanner-handler"),
	}
}

// RegisterRoutes registers scanner routes
func (h *ScannerHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/initialize", h.Initialize)
	router.POST("/scan", h.Scan)
	router.POST("/cancel", h.Cancel)
	router.POST("/teardown", h.Teardown)

	router.GET("/mode", h.GetMode)
	router.PUT("/mode", h.SetMode)
	router.GET("/policy", h.GetPolicy)
	router.PUT("/policy", h.SetPolicy)
	router.GET("/active", h.GetActive)
	router.GET("/preview", h.Preview)
	router.GET("/hardware", h.ListHardware)

	router.GET("/identifiers", h.ListIdentifiers)
	router.POST("/identifiers", h.AddIdentifier)
	router.DELETE("/identifiers", h.RemoveIdentifier)
	router.POST("/identifiers/reset", h.ResetIdentifiers)

	router.PUT("/timeout", h.SetTimeout)
	router.PUT("/beep", h.SetBeep)
	router.GET("/toast", h.GetToast)
	router.PUT("/toast", h.SetToast)
}

type identifierRequest struct {
	VendorID  uint16 `json:"vendor_id" binding:"required"`
	ProductID uint16 `json:"product_id" binding:"required"`
}

type modeRequest struct {
	Mode scanner.OperationMode `json:"mode" binding:"required"`
}

type policyRequest struct {
	Policy scanner.PriorityPolicy `json:"policy" binding:"required"`
}

type timeoutRequest struct {
	TimeoutMS int64 `json:"timeout_ms" binding:"required"`
}

type enabledRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// Initialize runs scanner detection and selection and commits the result
func (h *ScannerHandler) Initialize(c *gin.Context) {
	selected, err := h.manager.Initialize(c.Request.Context())
	if err != nil {
		h.sessionError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Scanner initialized", gin.H{
		"scanner_type": selected,
	})
}

// Scan requests a single scan result. Blocks until the session resolves.
func (h *ScannerHandler) Scan(c *gin.Context) {
	payload, err := h.manager.Scan(c.Request.Context())
	if err != nil {
		h.sessionError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Scan completed", gin.H{
		"payload":      payload,
		"scanner_type": h.manager.ActiveType(),
	})
}

// Cancel aborts the in-flight scan session
func (h *ScannerHandler) Cancel(c *gin.Context) {
	cancelled := h.manager.Cancel()
	utils.SuccessResponse(c, http.StatusOK, "Cancel processed", gin.H{
		"cancelled": cancelled,
	})
}

// Teardown releases the scanner and returns to the unselected state
func (h *ScannerHandler) Teardown(c *gin.Context) {
	h.manager.Teardown()
	utils.SuccessResponse(c, http.StatusOK, "Scanner torn down", nil)
}

// GetMode returns the current operation mode
func (h *ScannerHandler) GetMode(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Current operation mode", gin.H{
		"mode": h.manager.OperationMode(),
	})
}

// SetMode changes the operation mode
func (h *ScannerHandler) SetMode(c *gin.Context) {
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.manager.SetOperationMode(req.Mode); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid operation mode", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Operation mode updated", gin.H{
		"mode": req.Mode,
	})
}

// GetPolicy returns the current priority policy
func (h *ScannerHandler) GetPolicy(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Current priority policy", gin.H{
		"policy": h.manager.PriorityPolicy(),
	})
}

// SetPolicy changes the priority policy and re-evaluates the selection
func (h *ScannerHandler) SetPolicy(c *gin.Context) {
	var req policyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	selected, err := h.manager.SetPriorityPolicy(c.Request.Context(), req.Policy)
	if err != nil {
		if scanner.CodeOf(err) != "" {
			utils.ErrorResponse(c, http.StatusBadRequest, "Invalid priority policy", err)
		} else {
			h.sessionError(c, err)
		}
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Priority policy updated", gin.H{
		"policy":       req.Policy,
		"scanner_type": selected,
	})
}

// GetActive returns the committed scanner type
func (h *ScannerHandler) GetActive(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Active scanner type", gin.H{
		"scanner_type": h.manager.ActiveType(),
	})
}

// Preview re-derives the optimal scanner type without committing it
func (h *ScannerHandler) Preview(c *gin.Context) {
	selected, err := h.manager.PreviewOptimal(c.Request.Context())
	if err != nil {
		h.sessionError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Optimal scanner type", gin.H{
		"scanner_type": selected,
	})
}

// ListHardware lists attached compatible external scanners
func (h *ScannerHandler) ListHardware(c *gin.Context) {
	devices, err := h.manager.ListAttachedHardware(c.Request.Context())
	if err != nil {
		h.sessionError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Attached scanner hardware", gin.H{
		"devices": devices,
		"count":   len(devices),
	})
}

// ListIdentifiers lists the registered compatible identifiers
func (h *ScannerHandler) ListIdentifiers(c *gin.Context) {
	ids := h.manager.ListCompatibleIdentifiers()
	utils.SuccessResponse(c, http.StatusOK, "Compatible identifiers", gin.H{
		"identifiers": ids,
		"count":       len(ids),
	})
}

// AddIdentifier registers a compatible identifier
func (h *ScannerHandler) AddIdentifier(c *gin.Context) {
	var req identifierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	added := h.manager.AddCompatibleIdentifier(scanner.Identifier{
		VendorID:  req.VendorID,
		ProductID: req.ProductID,
	})
	utils.SuccessResponse(c, http.StatusOK, "Identifier processed", gin.H{
		"added": added,
	})
}

// RemoveIdentifier unregisters a compatible identifier
func (h *ScannerHandler) RemoveIdentifier(c *gin.Context) {
	var req identifierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	removed := h.manager.RemoveCompatibleIdentifier(scanner.Identifier{
		VendorID:  req.VendorID,
		ProductID: req.ProductID,
	})
	utils.SuccessResponse(c, http.StatusOK, "Identifier processed", gin.H{
		"removed": removed,
	})
}

// ResetIdentifiers restores the default identifier list
func (h *ScannerHandler) ResetIdentifiers(c *gin.Context) {
	h.manager.ResetCompatibleIdentifiers()
	utils.SuccessResponse(c, http.StatusOK, "Identifiers reset to defaults", gin.H{
		"identifiers": h.manager.ListCompatibleIdentifiers(),
	})
}

// SetTimeout sets the configurable session timeout
func (h *ScannerHandler) SetTimeout(c *gin.Context) {
	var req timeoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.manager.SetTimeout(time.Duration(req.TimeoutMS) * time.Millisecond); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Timeout must be positive", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Timeout updated", gin.H{
		"timeout_ms": req.TimeoutMS,
	})
}

// SetBeep toggles audio feedback
func (h *ScannerHandler) SetBeep(c *gin.Context) {
	var req enabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	h.manager.SetBeepEnabled(*req.Enabled)
	utils.SuccessResponse(c, http.StatusOK, "Beep setting updated", gin.H{
		"enabled": *req.Enabled,
	})
}

// GetToast returns the toast setting
func (h *ScannerHandler) GetToast(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Toast setting", gin.H{
		"enabled": h.manager.ToastEnabled(),
	})
}

// SetToast toggles the UI toast hint
func (h *ScannerHandler) SetToast(c *gin.Context) {
	var req enabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	h.manager.SetToastEnabled(*req.Enabled)
	utils.SuccessResponse(c, http.StatusOK, "Toast setting updated", gin.H{
		"enabled": *req.Enabled,
	})
}

// sessionError maps a session-lifecycle error onto an HTTP status. Errors
// without a code are collaborator failures passed through unchanged.
func (h *ScannerHandler) sessionError(c *gin.Context, err error) {
	var se *scanner.Error
	if !errors.As(err, &se) {
		utils.ErrorResponse(c, http.StatusBadGateway, "Hardware transport error", err)
		return
	}

	status := http.StatusInternalServerError
	switch se.Code {
	case scanner.CodeCooldownActive:
		status = http.StatusTooManyRequests
	case scanner.CodeScanCancelled:
		status = http.StatusConflict
	case scanner.CodeScanTimeout:
		status = http.StatusRequestTimeout
	case scanner.CodeNoScannersAvailable:
		status = http.StatusServiceUnavailable
	}

	utils.ErrorResponseWithCode(c, status, string(se.Code), se.Message, nil)
}
