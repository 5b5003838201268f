package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"widgetrag/internal/app"
	"widgetrag/internal/domain"
	"widgetrag/internal/transport/http/middleware"
	"widgetrag/internal/transport/http/response"
)

type errorMapping struct {
	err    error
	status int
	code   int
}

// Most specific first: app sentinels before the domain taxonomy they wrap.
var errorMappings = []errorMapping{
	{app.ErrUsernameExists, http.StatusBadRequest, response.CodeUsernameExists},
	{app.ErrEmailExists, http.StatusBadRequest, response.CodeEmailExists},
	{app.ErrEmptyDocument, http.StatusBadRequest, response.CodeEmptyDocument},
	{app.ErrInvalidCredential, http.StatusUnauthorized, response.CodeInvalidCredentials},
	{app.ErrForbidden, http.StatusForbidden, response.CodeForbidden},
	{app.ErrNotAdmin, http.StatusForbidden, response.CodeForbidden},
	{app.ErrDocumentNotFound, http.StatusNotFound, response.CodeDocumentNotFound},
	{app.ErrUserNotFound, http.StatusNotFound, response.CodeUserNotFound},
	{app.ErrDocumentBusy, http.StatusConflict, response.CodeDocumentBusy},
	{app.ErrUnsupportedFile, http.StatusUnsupportedMediaType, response.CodeUnsupportedFile},
	{app.ErrJobEnqueue, http.StatusServiceUnavailable, response.CodeUnavailable},
	{domain.ErrInvalidArgument, http.StatusBadRequest, response.CodeBadRequest},
	{domain.ErrInvalidConfiguration, http.StatusInternalServerError, response.CodeInternalServer},
	{domain.ErrModelNotFound, http.StatusNotFound, response.CodeModelNotFound},
	{domain.ErrModelNotAuthorized, http.StatusForbidden, response.CodeModelNotAuthorized},
	{domain.ErrEmbeddingUnavailable, http.StatusServiceUnavailable, response.CodeUnavailable},
	{domain.ErrEmbeddingInvalidResponse, http.StatusBadGateway, response.CodeUpstreamFailure},
	{domain.ErrLLMProviderError, http.StatusBadGateway, response.CodeUpstreamFailure},
}

func classify(err error) (status, code int) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, response.CodeInternalServer
}

// writeError maps err onto the envelope. Client errors carry err's message;
// server errors carry fallback so internals stay private.
func writeError(c *gin.Context, err error, fallback string) {
	_ = c.Error(err)
	status, code := classify(err)
	message := fallback
	kind := domain.Kind(err)
	if status < http.StatusInternalServerError {
		message = err.Error()
		if kind == domain.KindInternal {
			kind = ""
		}
	}
	response.ErrorWithKind(c, status, code, message, kind, providerDetail(err))
}

func providerDetail(err error) interface{} {
	var pe *domain.ProviderError
	if !errors.As(err, &pe) {
		return nil
	}
	return gin.H{"provider": pe.Provider, "detail": pe.Message}
}

func getUserIDFromContext(c *gin.Context) (uint, bool) {
	userIDAny, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}
	userID, ok := userIDAny.(uint)
	return userID, ok
}

func actorFromContext(c *gin.Context) (app.Actor, bool) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return app.Actor{}, false
	}
	role, _ := c.Get(middleware.ContextRoleKey)
	roleStr, _ := role.(string)
	return app.Actor{UserID: userID, Role: roleStr}, true
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id64, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id64 == 0 {
		return 0, false
	}
	return uint(id64), true
}

func sanitizeSSE(input string) string {
	replaced := strings.ReplaceAll(input, "\r\n", "\\n")
	replaced = strings.ReplaceAll(replaced, "\n", "\\n")
	return replaced
}
