package handler

import (
	"net/http"

	"github.com/fekuna/evaluation-portal/internal/httpx"
	"github.com/fekuna/evaluation-portal/internal/logger"
	"github.com/fekuna/evaluation-portal/internal/model"
	"github.com/fekuna/evaluation-portal/internal/subcategory"
	"github.com/gin-gonic/gin"
)

type SubcategoryHandler struct {
	uc     subcategory.UseCase
	logger logger.ZapLogger
}

func NewSubcategoryHandler(uc subcategory.UseCase, log logger.ZapLogger) *SubcategoryHandler {
	return &SubcategoryHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *SubcategoryHandler) Register(r gin.IRouter) {
	r.GET("/categories/:id/subcategories", h.ListSubcategories)
	r.GET("/subcategories/:id", h.GetSubcategory)
}

func (h *SubcategoryHandler) ListSubcategories(c *gin.Context) {
	subs, err := h.uc.ListSubcategories(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpx.AbortWithError(c, h.logger, err)
		return
	}
	if subs == nil {
		subs = []model.Subcategory{}
	}
	c.JSON(http.StatusOK, gin.H{"subcategories": subs})
}

// GetSubcategory answers with the owning category joined for breadcrumbs.
func (h *SubcategoryHandler) GetSubcategory(c *gin.Context) {
	sub, err := h.uc.GetSubcategory(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpx.AbortWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subcategory": sub})
}
