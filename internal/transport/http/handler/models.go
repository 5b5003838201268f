package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"widgetrag/internal/app"
	"widgetrag/internal/transport/http/response"
)

type ModelHandler struct {
	modelService *app.ModelService
}

func NewModelHandler(modelService *app.ModelService) *ModelHandler {
	return &ModelHandler{modelService: modelService}
}

func (h *ModelHandler) List(c *gin.Context) {
	response.OK(c, h.modelService.All())
}

func (h *ModelHandler) Available(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	models, err := h.modelService.Available(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err, "list available models failed")
		return
	}
	response.OK(c, models)
}

func (h *ModelHandler) ProviderModels(c *gin.Context) {
	provider := c.Param("name")
	models, err := h.modelService.ProviderModels(c.Request.Context(), provider)
	if err != nil {
		writeError(c, err, "list provider models failed")
		return
	}
	response.OK(c, gin.H{"provider": provider, "models": models})
}
