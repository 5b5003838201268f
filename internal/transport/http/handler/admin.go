package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"widgetrag/internal/app"
	"widgetrag/internal/transport/http/response"
)

type AdminHandler struct {
	adminService *app.AdminService
}

type SystemPromptRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

// UpdateUserRequest fields are optional; omitted ones keep their value.
type UpdateUserRequest struct {
	Role              *string `json:"role"`
	SubscriptionLevel *string `json:"subscription_level"`
}

func NewAdminHandler(adminService *app.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

func (h *AdminHandler) GetSystemPrompt(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	prompt, err := h.adminService.SystemPrompt(c.Request.Context(), actor)
	if err != nil {
		writeError(c, err, "get system prompt failed")
		return
	}
	response.OK(c, gin.H{"prompt": prompt})
}

func (h *AdminHandler) UpdateSystemPrompt(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	var req SystemPromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	setting, err := h.adminService.UpdateSystemPrompt(c.Request.Context(), actor, req.Prompt)
	if err != nil {
		writeError(c, err, "update system prompt failed")
		return
	}
	response.OK(c, gin.H{"prompt": setting.Value, "updated_at": setting.UpdatedAt})
}

func (h *AdminHandler) UpdateUser(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid user id")
		return
	}
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	user, err := h.adminService.UpdateUser(c.Request.Context(), actor, id, app.UpdateUserInput{
		Role:              req.Role,
		SubscriptionLevel: req.SubscriptionLevel,
	})
	if err != nil {
		writeError(c, err, "update user failed")
		return
	}
	response.OK(c, user)
}
