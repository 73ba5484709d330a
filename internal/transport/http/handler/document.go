package handler

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"ragdesk/internal/app"
	"ragdesk/internal/model"
	"ragdesk/internal/transport/http/response"
)

const maxPDFSize = 20 << 20 // 20 MB

type DocumentHandler struct {
	ingest *app.IngestService
}

type SubmitWebRequest struct {
	URL  string `json:"url" binding:"required,url,max=2048"`
	Name string `json:"name" binding:"max=128"`
}

func NewDocumentHandler(ingest *app.IngestService) *DocumentHandler {
	return &DocumentHandler{ingest: ingest}
}

// UploadPDF accepts a multipart form with "file" (PDF) and optional "name".
// The document is stored and queued; extraction and embedding happen in the
// background worker.
func (h *DocumentHandler) UploadPDF(c *gin.Context) {
	userID, role, ok := getIdentityFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}
	if file.Size > maxPDFSize {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "file too large (max 20MB)")
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".pdf" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "only PDF files are allowed")
		return
	}

	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" {
		name = strings.TrimSuffix(file.Filename, filepath.Ext(file.Filename))
		if name == "" {
			name = "Untitled"
		}
	}

	f, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}
	defer f.Close()

	doc, err := h.ingest.Submit(c.Request.Context(), app.SubmitInput{
		UserID:      userID,
		Role:        role,
		SourceType:  model.SourcePDF,
		DisplayName: name,
		Payload:     f,
	})
	if err != nil {
		h.writeSubmitError(c, err)
		return
	}

	response.Accepted(c, doc)
}

// SubmitWeb queues a web page for ingestion.
func (h *DocumentHandler) SubmitWeb(c *gin.Context) {
	userID, role, ok := getIdentityFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req SubmitWebRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	doc, err := h.ingest.Submit(c.Request.Context(), app.SubmitInput{
		UserID:      userID,
		Role:        role,
		SourceType:  model.SourceWeb,
		DisplayName: req.Name,
		SourceURL:   req.URL,
	})
	if err != nil {
		h.writeSubmitError(c, err)
		return
	}

	response.Accepted(c, doc)
}

func (h *DocumentHandler) List(c *gin.Context) {
	userID, _, ok := getIdentityFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	docs, err := h.ingest.ListDocuments(userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list documents failed")
		return
	}

	response.OK(c, docs)
}

func (h *DocumentHandler) Status(c *gin.Context) {
	userID, role, ok := getIdentityFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	docID := strings.TrimSpace(c.Param("id"))
	if docID == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid document id")
		return
	}

	doc, err := h.ingest.Status(userID, role, docID)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrDocumentNotFound):
			response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "fetch document failed")
		}
		return
	}

	response.OK(c, gin.H{
		"id":          doc.ID,
		"status":      doc.Status,
		"error":       doc.ErrorMessage,
		"chunk_count": doc.ChunkCount,
		"page_count":  doc.PageCount,
	})
}

func (h *DocumentHandler) Reingest(c *gin.Context) {
	userID, role, ok := getIdentityFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	docID := strings.TrimSpace(c.Param("id"))
	if docID == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid document id")
		return
	}

	doc, err := h.ingest.Reingest(c.Request.Context(), userID, role, docID)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrDocumentNotFound):
			response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, err.Error())
		case errors.Is(err, app.ErrIngestInProgress):
			response.Error(c, http.StatusConflict, response.CodeIngestConflict, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "reingest document failed")
		}
		return
	}

	response.Accepted(c, doc)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	_, role, ok := getIdentityFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	docID := strings.TrimSpace(c.Param("id"))
	if docID == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid document id")
		return
	}

	if err := h.ingest.Delete(c.Request.Context(), role, docID); err != nil {
		switch {
		case errors.Is(err, model.ErrUnknownRole), errors.Is(err, app.ErrNotPermitted):
			response.Error(c, http.StatusForbidden, response.CodeForbidden, "operation not permitted")
		case errors.Is(err, app.ErrDocumentNotFound):
			response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete document failed")
		}
		return
	}

	response.OK(c, gin.H{"deleted_document_id": docID})
}

func (h *DocumentHandler) writeSubmitError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, model.ErrUnknownRole), errors.Is(err, app.ErrSourceTypeNotAllowed):
		response.Error(c, http.StatusForbidden, response.CodeForbidden, "role may not contribute this source type")
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "submit document failed")
	}
}
