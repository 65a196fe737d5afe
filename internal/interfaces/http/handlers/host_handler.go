package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/personal/adunit-lifecycle/internal/application/service"
)

// HostHandler handles HTTP requests for the global gate, host environment
// and scheduler
type HostHandler struct {
	unitService *service.UnitService
	validator   *validator.Validate
	service     string
}

// NewHostHandler creates a new HostHandler
func NewHostHandler(unitService *service.UnitService, serviceName string) *HostHandler {
	return &HostHandler{
		unitService: unitService,
		validator:   validator.New(),
		service:     serviceName,
	}
}

// GateRequest represents a request to open or close the gate
type GateRequest struct {
	Allow *bool `json:"allow" validate:"required"`
}

// PauseRequest represents a host pause or resume
type PauseRequest struct {
	Paused *bool `json:"paused" validate:"required"`
}

func (h *HostHandler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request format",
			Details: err.Error(),
		})
		return false
	}
	if err := h.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Validation failed",
			Details: err.Error(),
		})
		return false
	}
	return true
}

// GetGate handles GET /gate
// @Summary Get the global gate
// @Tags gate
// @Produce json
// @Success 200 {object} service.GateResponse
// @Router /gate [get]
func (h *HostHandler) GetGate(c *gin.Context) {
	c.JSON(http.StatusOK, h.unitService.Gate(c.Request.Context()))
}

// SetGate handles PUT /gate
// @Summary Open or close the global gate
// @Description Closing releases every unit's provider resource
// @Tags gate
// @Accept json
// @Produce json
// @Param body body GateRequest true "Gate"
// @Success 200 {object} service.GateResponse
// @Router /gate [put]
func (h *HostHandler) SetGate(c *gin.Context) {
	var req GateRequest
	if !h.bind(c, &req) {
		return
	}

	response, err := h.unitService.SetAllow(c.Request.Context(), *req.Allow)
	if err != nil {
		writeError(c, "Failed to change gate", err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// GetEnvironment handles GET /environment
// @Summary Get environment readings
// @Tags environment
// @Produce json
// @Success 200 {object} service.EnvironmentResponse
// @Router /environment [get]
func (h *HostHandler) GetEnvironment(c *gin.Context) {
	c.JSON(http.StatusOK, h.unitService.Environment(c.Request.Context()))
}

// UpdateEnvironment handles PUT /environment
// @Summary Change environment readings
// @Tags environment
// @Accept json
// @Produce json
// @Param body body service.EnvironmentRequest true "Readings"
// @Success 200 {object} service.EnvironmentResponse
// @Failure 501 {object} ErrorResponse
// @Router /environment [put]
func (h *HostHandler) UpdateEnvironment(c *gin.Context) {
	var req service.EnvironmentRequest
	if !h.bind(c, &req) {
		return
	}

	response, err := h.unitService.UpdateEnvironment(c.Request.Context(), &req)
	if err != nil {
		writeError(c, "Failed to change environment", err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// Pause handles POST /lifecycle/pause
// @Summary Report host pause or resume
// @Description Resuming reloads every unit on the next tick
// @Tags lifecycle
// @Accept json
// @Param body body PauseRequest true "Pause"
// @Success 202
// @Router /lifecycle/pause [post]
func (h *HostHandler) Pause(c *gin.Context) {
	var req PauseRequest
	if !h.bind(c, &req) {
		return
	}

	h.unitService.Pause(c.Request.Context(), *req.Paused)
	c.Status(http.StatusAccepted)
}

// GetScheduler handles GET /scheduler
// @Summary Get change detector statistics
// @Tags scheduler
// @Produce json
// @Success 200 {object} service.DriverStats
// @Router /scheduler [get]
func (h *HostHandler) GetScheduler(c *gin.Context) {
	stats, err := h.unitService.SchedulerStats(c.Request.Context())
	if err != nil {
		writeError(c, "Failed to get scheduler statistics", err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetJournal handles GET /journal
// @Summary Get recent lifecycle entries
// @Tags journal
// @Produce json
// @Param group query string false "Group name"
// @Param limit query int false "Number of entries" default(50)
// @Success 200 {object} map[string]interface{}
// @Failure 501 {object} ErrorResponse
// @Router /journal [get]
func (h *HostHandler) GetJournal(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 1000 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Limit must be a positive integer between 1 and 1000",
		})
		return
	}

	entries, err := h.unitService.RecentJournal(c.Request.Context(), c.Query("group"), limit)
	if err != nil {
		writeError(c, "Failed to get journal", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"count":   len(entries),
	})
}

// HealthCheck handles GET /health
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *HostHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   h.service,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ReadinessCheck handles GET /ready
// @Summary Readiness check
// @Description Ready once ads are allowed and the provider is initialized
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /ready [get]
func (h *HostHandler) ReadinessCheck(c *gin.Context) {
	gate := h.unitService.Gate(c.Request.Context())
	status := http.StatusOK
	state := "ready"
	if !gate.Acceptable {
		status = http.StatusServiceUnavailable
		state = "not_ready"
	}

	c.JSON(status, gin.H{
		"status":  state,
		"service": h.service,
		"gate":    gate,
	})
}

// RegisterRoutes registers health checks on router and host routes on v1
func (h *HostHandler) RegisterRoutes(router *gin.Engine, v1 *gin.RouterGroup) {
	router.GET("/health", h.HealthCheck)
	router.GET("/ready", h.ReadinessCheck)

	v1.GET("/gate", h.GetGate)
	v1.PUT("/gate", h.SetGate)
	v1.GET("/environment", h.GetEnvironment)
	v1.PUT("/environment", h.UpdateEnvironment)
	v1.POST("/lifecycle/pause", h.Pause)
	v1.GET("/scheduler", h.GetScheduler)
	v1.GET("/journal", h.GetJournal)
}
