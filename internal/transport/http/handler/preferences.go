package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"widgetrag/internal/app"
	"widgetrag/internal/transport/http/response"
)

type PreferenceHandler struct {
	prefService *app.PreferenceService
}

// UpdatePreferenceRequest fields are optional; omitted ones keep their value.
type UpdatePreferenceRequest struct {
	PreferredModelID *string  `json:"preferred_model_id"`
	Temperature      *float64 `json:"temperature"`
	MaxTokens        *int     `json:"max_tokens"`
	EnableStreaming  *bool    `json:"enable_streaming"`
}

func NewPreferenceHandler(prefService *app.PreferenceService) *PreferenceHandler {
	return &PreferenceHandler{prefService: prefService}
}

func (h *PreferenceHandler) Get(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	pref, err := h.prefService.Get(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err, "get preferences failed")
		return
	}
	response.OK(c, pref)
}

func (h *PreferenceHandler) Update(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req UpdatePreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	pref, err := h.prefService.Update(c.Request.Context(), userID, app.UpdatePreferenceInput{
		PreferredModelID: req.PreferredModelID,
		Temperature:      req.Temperature,
		MaxTokens:        req.MaxTokens,
		EnableStreaming:  req.EnableStreaming,
	})
	if err != nil {
		writeError(c, err, "update preferences failed")
		return
	}
	response.OK(c, pref)
}
