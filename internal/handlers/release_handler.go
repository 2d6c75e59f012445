package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"qarelease/internal/service"

	"github.com/gin-gonic/gin"
)

type ReleaseHandler struct {
	service service.ReleaseService
}

func NewReleaseHandler(service service.ReleaseService) *ReleaseHandler {
	return &ReleaseHandler{service: service}
}

// RegisterRoutes вешает операции релиза на группу /api/v1.
func (h *ReleaseHandler) RegisterRoutes(api *gin.RouterGroup) {
	api.POST("/releases", h.Create)
	api.GET("/releases", h.List)
	api.GET("/releases/:id", h.GetByID)
	api.GET("/releases/by-sample/:sampleId", h.GetBySample)
	api.PUT("/releases/:id", h.Update)
	api.DELETE("/releases/:id", h.Delete)
	api.POST("/releases/:id/complete-checklist", h.CompleteChecklist)
	api.POST("/releases/:id/decision", h.MakeDecision)
	api.POST("/releases/:id/notify-warehouse", h.NotifyWarehouse)
}

func (h *ReleaseHandler) Create(c *gin.Context) {
	var input service.CreateReleaseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid request body",
			"message": err.Error(),
		})
		return
	}

	release, err := h.service.Create(c.Request.Context(), input)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, release)
}

func (h *ReleaseHandler) List(c *gin.Context) {
	releases, err := h.service.List(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count": len(releases),
		"items": releases,
	})
}

func (h *ReleaseHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	release, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, release)
}

func (h *ReleaseHandler) GetBySample(c *gin.Context) {
	releases, err := h.service.GetBySample(c.Request.Context(), c.Param("sampleId"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count": len(releases),
		"items": releases,
	})
}

func (h *ReleaseHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var input service.UpdateReleaseInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid request body",
			"message": err.Error(),
		})
		return
	}

	release, err := h.service.Update(c.Request.Context(), id, input)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, release)
}

func (h *ReleaseHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type completeChecklistInput struct {
	ReviewedBy string `json:"reviewed_by" binding:"required"`
}

func (h *ReleaseHandler) CompleteChecklist(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var input completeChecklistInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid request body",
			"message": err.Error(),
		})
		return
	}

	release, err := h.service.CompleteChecklist(c.Request.Context(), id, input.ReviewedBy)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, release)
}

func (h *ReleaseHandler) MakeDecision(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var input service.DecisionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid request body",
			"message": err.Error(),
		})
		return
	}

	release, err := h.service.MakeDecision(c.Request.Context(), id, input)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, release)
}

func (h *ReleaseHandler) NotifyWarehouse(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	release, err := h.service.NotifyWarehouse(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, release)
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid release id",
			"message": c.Param("id"),
		})
		return 0, false
	}
	return uint(id), true
}

// writeServiceError переводит таксономию сервисных ошибок в HTTP-статусы,
// чтобы вызывающий ветвился по причине, а не парсил текст.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not found",
			"message": err.Error(),
		})
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation failed",
			"message": err.Error(),
		})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "conflict",
			"message": err.Error(),
		})
	case errors.Is(err, service.ErrUpstream):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "upstream unavailable",
			"message": err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal error",
			"message": err.Error(),
		})
	}
}
