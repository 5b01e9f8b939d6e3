package delivery

import (
	"errors"
	"net/http"
	"time"

	"mailpilot-backend/internal/response/domain"
	"mailpilot-backend/internal/response/repository"
	"mailpilot-backend/internal/response/usecase"

	"github.com/gin-gonic/gin"
)

type ResponseHandler struct {
	responseUsecase usecase.ResponseUsecase
	policies        repository.PolicyRepository
	deviceTokens    repository.DeviceTokenRepository
}

func NewResponseHandler(responseUsecase usecase.ResponseUsecase, policies repository.PolicyRepository, deviceTokens repository.DeviceTokenRepository) *ResponseHandler {
	return &ResponseHandler{
		responseUsecase: responseUsecase,
		policies:        policies,
		deviceTokens:    deviceTokens,
	}
}

type submitRequest struct {
	ID         string     `json:"id"`
	ThreadID   string     `json:"thread_id"`
	Sender     string     `json:"sender" binding:"required"`
	Subject    string     `json:"subject"`
	Body       string     `json:"body" binding:"required"`
	ReceivedAt *time.Time `json:"received_at"`
}

// Submit runs the pipeline for a message handed in directly, bypassing
// the mailbox poller. Replays of the same message ID return the
// existing record.
func (h *ResponseHandler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg := &domain.IncomingMessage{
		ID:       req.ID,
		ThreadID: req.ThreadID,
		UserID:   c.GetString("userID"),
		Sender:   req.Sender,
		Subject:  req.Subject,
		Body:     req.Body,
	}
	if req.ReceivedAt != nil {
		msg.ReceivedAt = *req.ReceivedAt
	}

	record, err := h.responseUsecase.Submit(c.Request.Context(), msg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (h *ResponseHandler) GetRecord(c *gin.Context) {
	record, err := h.responseUsecase.GetRecord(c.GetString("userID"), c.Param("id"))
	if err != nil {
		if errors.Is(err, usecase.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "response not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *ResponseHandler) GetStatus(c *gin.Context) {
	status, err := h.responseUsecase.GetStatus(c.GetString("userID"), c.Param("id"))
	if err != nil {
		if errors.Is(err, usecase.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "response not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (h *ResponseHandler) Approve(c *gin.Context) {
	record, err := h.responseUsecase.Approve(c.Request.Context(), c.GetString("userID"), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "response not found"})
		case errors.Is(err, usecase.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"error": "response is not awaiting approval"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *ResponseHandler) Reject(c *gin.Context) {
	err := h.responseUsecase.Reject(c.Request.Context(), c.GetString("userID"), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "response not found"})
		case errors.Is(err, usecase.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"error": "response can no longer be rejected"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": domain.StatusRejected})
}

func (h *ResponseHandler) GetDailySummary(c *gin.Context) {
	date := time.Now()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		date = parsed
	}

	summary, err := h.responseUsecase.GetDailySummary(c.GetString("userID"), date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *ResponseHandler) GetPolicy(c *gin.Context) {
	userID := c.GetString("userID")
	policy, err := h.policies.GetByUserID(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if policy == nil {
		policy = domain.DefaultPolicy(userID)
	}
	c.JSON(http.StatusOK, policy)
}

type policyRequest struct {
	AutoSendEnabled                 bool   `json:"auto_send_enabled"`
	ConfidenceThreshold             int    `json:"confidence_threshold"`
	DailyLimit                      int    `json:"daily_limit"`
	RequireConfirmationForImportant bool   `json:"require_confirmation_for_important"`
	MinDwellMinutes                 int    `json:"min_dwell_minutes"`
	WorkingDays                     string `json:"working_days"`
	WorkingHoursStart               string `json:"working_hours_start"`
	WorkingHoursEnd                 string `json:"working_hours_end"`
	SummaryEmailAddress             string `json:"summary_email_address"`
}

func (h *ResponseHandler) UpdatePolicy(c *gin.Context) {
	var req policyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ConfidenceThreshold < 0 || req.ConfidenceThreshold > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "confidence_threshold must be between 0 and 100"})
		return
	}
	if req.DailyLimit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "daily_limit must not be negative"})
		return
	}

	policy := &domain.AutomationPolicy{
		UserID:                          c.GetString("userID"),
		AutoSendEnabled:                 req.AutoSendEnabled,
		ConfidenceThreshold:             req.ConfidenceThreshold,
		DailyLimit:                      req.DailyLimit,
		RequireConfirmationForImportant: req.RequireConfirmationForImportant,
		MinDwellMinutes:                 req.MinDwellMinutes,
		WorkingDays:                     req.WorkingDays,
		WorkingHoursStart:               req.WorkingHoursStart,
		WorkingHoursEnd:                 req.WorkingHoursEnd,
		SummaryEmailAddress:             req.SummaryEmailAddress,
	}
	if err := h.policies.Upsert(policy); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, policy)
}

type deviceTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

func (h *ResponseHandler) RegisterDevice(c *gin.Context) {
	var req deviceTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.deviceTokens.Register(c.GetString("userID"), req.Token); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "registered"})
}

func (h *ResponseHandler) UnregisterDevice(c *gin.Context) {
	var req deviceTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.deviceTokens.Delete(req.Token); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "unregistered"})
}
