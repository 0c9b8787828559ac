package handler

import (
	"net/http"

	"github.com/fekuna/evaluation-portal/internal/category"
	"github.com/fekuna/evaluation-portal/internal/httpx"
	"github.com/fekuna/evaluation-portal/internal/logger"
	"github.com/gin-gonic/gin"
)

type CategoryHandler struct {
	uc     category.UseCase
	logger logger.ZapLogger
}

func NewCategoryHandler(uc category.UseCase, log logger.ZapLogger) *CategoryHandler {
	return &CategoryHandler{
		uc:     uc,
		logger: log,
	}
}

// Register mounts the public, read-only routes.
func (h *CategoryHandler) Register(r gin.IRouter) {
	r.GET("/categories", h.ListCategories)
	r.GET("/categories/:id", h.GetCategory)
}

func (h *CategoryHandler) ListCategories(c *gin.Context) {
	cats, err := h.uc.ListCategories(c.Request.Context())
	if err != nil {
		httpx.AbortWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": cats})
}

func (h *CategoryHandler) GetCategory(c *gin.Context) {
	cat, err := h.uc.GetCategory(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpx.AbortWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": cat})
}
