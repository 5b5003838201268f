package handler

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"widgetrag/internal/app"
	"widgetrag/internal/transport/http/response"
)

type DocumentHandler struct {
	docService     *app.DocumentService
	maxUploadBytes int64
}

// ReprocessManyRequest selects documents by id unless ?all=true is given.
type ReprocessManyRequest struct {
	DocumentIDs []uint `json:"document_ids"`
}

type CreateDocumentRequest struct {
	Name    string `json:"name" binding:"max=256"`
	Content string `json:"content" binding:"required"`
}

func NewDocumentHandler(docService *app.DocumentService, maxUploadBytes int64) *DocumentHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	return &DocumentHandler{docService: docService, maxUploadBytes: maxUploadBytes}
}

func (h *DocumentHandler) Create(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	doc, err := h.docService.Create(c.Request.Context(), app.CreateDocumentInput{
		OwnerID: userID,
		Name:    req.Name,
		Content: req.Content,
	})
	if err != nil {
		writeError(c, err, "create document failed")
		return
	}
	response.OK(c, doc)
}

func (h *DocumentHandler) Upload(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, http.StatusRequestEntityTooLarge, response.CodePayloadTooLarge, "file too large")
			return
		}
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file field")
		return
	}
	if fileHeader.Size > h.maxUploadBytes {
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodePayloadTooLarge, "file too large")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "read upload failed")
		return
	}
	defer file.Close()

	doc, err := h.docService.Upload(c.Request.Context(), userID, fileHeader.Filename, file)
	if err != nil {
		writeError(c, err, "upload document failed")
		return
	}
	response.OK(c, doc)
}

func (h *DocumentHandler) List(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	docs, err := h.docService.List(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err, "list documents failed")
		return
	}
	response.OK(c, docs)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	actor, id, ok := h.target(c)
	if !ok {
		return
	}
	doc, err := h.docService.Get(c.Request.Context(), actor, id)
	if err != nil {
		writeError(c, err, "get document failed")
		return
	}
	response.OK(c, doc)
}

func (h *DocumentHandler) Chunks(c *gin.Context) {
	actor, id, ok := h.target(c)
	if !ok {
		return
	}
	chunks, err := h.docService.Chunks(c.Request.Context(), actor, id)
	if err != nil {
		writeError(c, err, "list chunks failed")
		return
	}
	response.OK(c, chunks)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	actor, id, ok := h.target(c)
	if !ok {
		return
	}
	if err := h.docService.Delete(c.Request.Context(), actor, id); err != nil {
		writeError(c, err, "delete document failed")
		return
	}
	response.OK(c, gin.H{"deleted_document_id": id})
}

func (h *DocumentHandler) Reprocess(c *gin.Context) {
	actor, id, ok := h.target(c)
	if !ok {
		return
	}
	doc, err := h.docService.Reprocess(c.Request.Context(), actor, id)
	if err != nil {
		writeError(c, err, "reprocess document failed")
		return
	}
	response.OK(c, doc)
}

// ReprocessMany queues the caller's documents for reprocessing.
func (h *DocumentHandler) ReprocessMany(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	all := c.Query("all") == "true"

	var req ReprocessManyRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
			return
		}
	}
	if !all && len(req.DocumentIDs) == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "document_ids is required unless all=true")
		return
	}

	result, err := h.docService.ReprocessMany(c.Request.Context(), actor, req.DocumentIDs, all)
	if err != nil {
		writeError(c, err, "reprocess documents failed")
		return
	}
	response.OK(c, result)
}

// Download returns the stored text of a document as an attachment. Binary
// uploads were reduced to text on the way in, so they download as .txt.
func (h *DocumentHandler) Download(c *gin.Context) {
	actor, id, ok := h.target(c)
	if !ok {
		return
	}
	doc, err := h.docService.Get(c.Request.Context(), actor, id)
	if err != nil {
		writeError(c, err, "download document failed")
		return
	}

	contentType, name := downloadType(doc.ContentType, doc.Name)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, contentType+"; charset=utf-8", []byte(doc.Content))
}

func downloadType(contentType, name string) (string, string) {
	name = strings.NewReplacer(`"`, "", "\r", "", "\n", "").Replace(name)
	if name == "" {
		name = "document"
	}
	if strings.HasPrefix(contentType, "text/") {
		return contentType, name
	}
	return "text/plain", strings.TrimSuffix(name, filepath.Ext(name)) + ".txt"
}

func (h *DocumentHandler) target(c *gin.Context) (app.Actor, uint, bool) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return app.Actor{}, 0, false
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid document id")
		return app.Actor{}, 0, false
	}
	return actor, id, true
}
