package handler

import (
	"net/http"
	"strconv"

	"github.com/fekuna/evaluation-portal/internal/evaluation"
	"github.com/fekuna/evaluation-portal/internal/evaluation/dto"
	"github.com/fekuna/evaluation-portal/internal/httpx"
	"github.com/fekuna/evaluation-portal/internal/logger"
	"github.com/fekuna/evaluation-portal/internal/model"
	"github.com/gin-gonic/gin"
)

type EvaluationHandler struct {
	uc     evaluation.UseCase
	logger logger.ZapLogger
}

func NewEvaluationHandler(uc evaluation.UseCase, log logger.ZapLogger) *EvaluationHandler {
	return &EvaluationHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *EvaluationHandler) Register(r gin.IRouter) {
	r.GET("/subcategories/:id/evaluations", h.ListEvaluations)
	r.GET("/evaluations/search", h.SearchEvaluations)
	r.GET("/evaluations/:id", h.GetEvaluation)
}

func (h *EvaluationHandler) ListEvaluations(c *gin.Context) {
	evals, err := h.uc.ListEvaluations(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpx.AbortWithError(c, h.logger, err)
		return
	}
	if evals == nil {
		evals = []model.Evaluation{}
	}
	c.JSON(http.StatusOK, gin.H{"evaluations": evals})
}

func (h *EvaluationHandler) GetEvaluation(c *gin.Context) {
	e, err := h.uc.GetEvaluation(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpx.AbortWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"evaluation": e})
}

func (h *EvaluationHandler) SearchEvaluations(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	evals, err := h.uc.SearchEvaluations(c.Request.Context(), &dto.SearchFilters{
		Query: c.Query("q"),
		Limit: limit,
	})
	if err != nil {
		httpx.AbortWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"evaluations": evals})
}
