package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"widgetrag/internal/app"
	"widgetrag/internal/domain"
	"widgetrag/internal/logger"
	"widgetrag/internal/transport/http/response"
)

const queryFailedMessage = "could not generate a response"

type QueryHandler struct {
	queryService *app.QueryService
}

type QueryRequest struct {
	Query               string   `json:"query" binding:"required"`
	ModelID             string   `json:"model_id"`
	DocumentIDs         []uint   `json:"document_ids"`
	ConfidenceThreshold *float64 `json:"confidence_threshold"`
	TopK                int      `json:"top_k" binding:"gte=0,lte=50"`
}

func NewQueryHandler(queryService *app.QueryService) *QueryHandler {
	return &QueryHandler{queryService: queryService}
}

func (r QueryRequest) input(userID uint) app.QueryInput {
	return app.QueryInput{
		UserID:              userID,
		Query:               r.Query,
		ModelID:             r.ModelID,
		DocumentIDs:         r.DocumentIDs,
		ConfidenceThreshold: r.ConfidenceThreshold,
		TopK:                r.TopK,
	}
}

func (h *QueryHandler) Query(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.queryService.Query(c.Request.Context(), req.input(userID))
	if err != nil {
		_ = c.Error(err)
		status, code := classify(err)
		response.ErrorWithKind(c, status, code, queryFailedMessage, domain.Kind(err), providerDetail(err))
		return
	}
	response.OK(c, result)
}

func (h *QueryHandler) Stream(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "stream not supported")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	sink := &sseSink{c: c, flusher: flusher}
	if err := h.queryService.Stream(c.Request.Context(), req.input(userID), sink); err != nil {
		_ = c.Error(err)
		logger.FromContext(c.Request.Context(), nil).Warn("query stream failed", zap.Error(err))
	}
}

// sseSink writes fragments as data events, then a done or error event.
type sseSink struct {
	c       *gin.Context
	flusher http.Flusher
}

func (s *sseSink) write(frame string) error {
	if _, err := s.c.Writer.Write([]byte(frame)); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseSink) OnChunk(text string) error {
	return s.write("data: " + sanitizeSSE(text) + "\n\n")
}

func (s *sseSink) OnComplete(result app.QueryResult) {
	payload, err := json.Marshal(result)
	if err != nil {
		s.OnError(fmt.Errorf("encode stream metadata: %w", err))
		return
	}
	_ = s.write("event: done\ndata: " + string(payload) + "\n\n")
}

func (s *sseSink) OnError(err error) {
	payload, _ := json.Marshal(gin.H{
		"message": queryFailedMessage,
		"kind":    domain.Kind(err),
	})
	_ = s.write("event: error\ndata: " + string(payload) + "\n\n")
}
