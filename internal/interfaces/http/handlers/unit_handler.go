package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/personal/adunit-lifecycle/internal/application/service"
	"github.com/personal/adunit-lifecycle/internal/domain/unit"
)

// UnitHandler handles HTTP requests for unit operations
type UnitHandler struct {
	unitService *service.UnitService
	validator   *validator.Validate
}

// NewUnitHandler creates a new UnitHandler
func NewUnitHandler(unitService *service.UnitService) *UnitHandler {
	return &UnitHandler{
		unitService: unitService,
		validator:   validator.New(),
	}
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// ActiveRequest represents a request to show or hide units
type ActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// writeError maps service and domain errors to HTTP responses
func writeError(c *gin.Context, message string, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"

	var constructionErr *unit.ConstructionError
	switch {
	case errors.As(err, &constructionErr):
		status, code = http.StatusConflict, "construction_rejected"
	case errors.Is(err, unit.ErrGateClosed):
		status, code = http.StatusServiceUnavailable, "gate_closed"
	case errors.Is(err, service.ErrUnitNotFound):
		status, code = http.StatusNotFound, "unit_not_found"
	case errors.Is(err, unit.ErrInvalidGroup),
		errors.Is(err, unit.ErrInvalidKind),
		errors.Is(err, unit.ErrInvalidPlacement):
		status, code = http.StatusBadRequest, "invalid_unit"
	case errors.Is(err, service.ErrEnvironmentReadOnly),
		errors.Is(err, service.ErrJournalUnavailable):
		status, code = http.StatusNotImplemented, "unsupported"
	case errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusGatewayTimeout, "timeout"
	}

	c.JSON(status, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: err.Error(),
	})
}

func (h *UnitHandler) bind(c *gin.Context, req interface{}) bool {
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

func unitAddress(c *gin.Context) (string, int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Index must be a non-negative integer",
		})
		return "", 0, false
	}
	return c.Param("group"), index, true
}

// CreateUnit handles POST /units
// @Summary Create a unit
// @Description Create a unit in a group; loading starts once the provider is ready
// @Tags units
// @Accept json
// @Produce json
// @Param unit body service.CreateUnitRequest true "Unit data"
// @Success 201 {object} service.UnitResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /units [post]
func (h *UnitHandler) CreateUnit(c *gin.Context) {
	var req service.CreateUnitRequest
	if !h.bind(c, &req) {
		return
	}

	response, err := h.unitService.CreateUnit(c.Request.Context(), &req)
	if err != nil {
		writeError(c, "Failed to create unit", err)
		return
	}

	c.JSON(http.StatusCreated, response)
}

// ListUnits handles GET /units
// @Summary List units
// @Tags units
// @Produce json
// @Param group query string false "Group name"
// @Success 200 {object} map[string]interface{}
// @Router /units [get]
func (h *UnitHandler) ListUnits(c *gin.Context) {
	units, err := h.unitService.ListUnits(c.Request.Context(), c.Query("group"))
	if err != nil {
		writeError(c, "Failed to list units", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"units": units,
		"count": len(units),
	})
}

// GetUnit handles GET /units/:group/:index
// @Summary Get a unit
// @Tags units
// @Produce json
// @Success 200 {object} service.UnitResponse
// @Failure 404 {object} ErrorResponse
// @Router /units/{group}/{index} [get]
func (h *UnitHandler) GetUnit(c *gin.Context) {
	group, index, ok := unitAddress(c)
	if !ok {
		return
	}

	response, err := h.unitService.GetUnit(c.Request.Context(), group, index)
	if err != nil {
		writeError(c, "Failed to get unit", err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// DestroyUnit handles DELETE /units/:group/:index
// @Summary Destroy a unit
// @Tags units
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /units/{group}/{index} [delete]
func (h *UnitHandler) DestroyUnit(c *gin.Context) {
	group, index, ok := unitAddress(c)
	if !ok {
		return
	}

	if err := h.unitService.DestroyUnit(c.Request.Context(), group, index); err != nil {
		writeError(c, "Failed to destroy unit", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// SetUnitActive handles PUT /units/:group/:index/active
// @Summary Show or hide one unit
// @Tags units
// @Accept json
// @Produce json
// @Param body body ActiveRequest true "Visibility"
// @Success 200 {object} service.UnitResponse
// @Router /units/{group}/{index}/active [put]
func (h *UnitHandler) SetUnitActive(c *gin.Context) {
	group, index, ok := unitAddress(c)
	if !ok {
		return
	}
	var req ActiveRequest
	if !h.bind(c, &req) {
		return
	}

	response, err := h.unitService.SetUnitActive(c.Request.Context(), group, index, *req.Active)
	if err != nil {
		writeError(c, "Failed to change unit visibility", err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// ReMake handles POST /remake
// @Summary Reload units
// @Description Reload matching units keeping their show requests
// @Tags units
// @Accept json
// @Produce json
// @Param body body service.ReMakeRequest true "Selection"
// @Success 200 {object} map[string]interface{}
// @Router /remake [post]
func (h *UnitHandler) ReMake(c *gin.Context) {
	var req service.ReMakeRequest
	if !h.bind(c, &req) {
		return
	}

	count, err := h.unitService.ReMake(c.Request.Context(), &req)
	if err != nil {
		writeError(c, "Failed to remake units", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reloaded": count})
}

// GetGroupActive handles GET /groups/:group/active
// @Summary Get group activation
// @Tags groups
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /groups/{group}/active [get]
func (h *UnitHandler) GetGroupActive(c *gin.Context) {
	group := c.Param("group")
	active, err := h.unitService.GetGroupActive(c.Request.Context(), group)
	if err != nil {
		writeError(c, "Failed to get group activation", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"group":  group,
		"active": active,
	})
}

// SetGroupActive handles PUT /groups/:group/active
// @Summary Activate or deactivate a group
// @Description Activating a group deactivates every other group
// @Tags groups
// @Accept json
// @Produce json
// @Param body body ActiveRequest true "Visibility"
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} ErrorResponse
// @Router /groups/{group}/active [put]
func (h *UnitHandler) SetGroupActive(c *gin.Context) {
	group := c.Param("group")
	var req ActiveRequest
	if !h.bind(c, &req) {
		return
	}

	if err := h.unitService.SetGroupActive(c.Request.Context(), group, *req.Active); err != nil {
		writeError(c, "Failed to change group activation", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"group":  group,
		"active": *req.Active,
	})
}

// DestroyGroup handles DELETE /groups/:group
// @Summary Destroy the units of a group
// @Tags groups
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /groups/{group} [delete]
func (h *UnitHandler) DestroyGroup(c *gin.Context) {
	h.destroy(c, c.Param("group"))
}

// DestroyAll handles DELETE /groups
// @Summary Destroy every unit
// @Tags groups
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /groups [delete]
func (h *UnitHandler) DestroyAll(c *gin.Context) {
	h.destroy(c, service.AllGroups)
}

func (h *UnitHandler) destroy(c *gin.Context, group string) {
	count, err := h.unitService.DestroyGroup(c.Request.Context(), group)
	if err != nil {
		writeError(c, "Failed to destroy units", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"destroyed": count})
}

// RegisterRoutes registers all unit-related routes
func (h *UnitHandler) RegisterRoutes(v1 *gin.RouterGroup) {
	v1.POST("/units", h.CreateUnit)
	v1.GET("/units", h.ListUnits)
	v1.POST("/remake", h.ReMake)
	v1.GET("/units/:group/:index", h.GetUnit)
	v1.DELETE("/units/:group/:index", h.DestroyUnit)
	v1.PUT("/units/:group/:index/active", h.SetUnitActive)

	v1.GET("/groups/:group/active", h.GetGroupActive)
	v1.PUT("/groups/:group/active", h.SetGroupActive)
	v1.DELETE("/groups/:group", h.DestroyGroup)
	v1.DELETE("/groups", h.DestroyAll)
}
