package handler

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"lexibot/internal/app"
	"lexibot/internal/extract"
	"lexibot/internal/transport/http/response"
)

const maxUploadSize = 20 << 20 // 20 MB

type DocumentHandler struct {
	ingestService *app.IngestService
}

func NewDocumentHandler(ingestService *app.IngestService) *DocumentHandler {
	return &DocumentHandler{ingestService: ingestService}
}

// Upload accepts a multipart form with "file" (pdf, png, jpg or jpeg) and
// ingests it for the authenticated user.
func (h *DocumentHandler) Upload(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}
	if file.Size > maxUploadSize {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "file too large (max 20MB)")
		return
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(file.Filename)), ".")
	switch ext {
	case "pdf", "png", "jpg", "jpeg":
	default:
		response.Error(c, http.StatusBadRequest, response.CodeUnsupportedFile, "only pdf, png, jpg or jpeg files are allowed")
		return
	}

	f, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}

	filename := strings.TrimSpace(c.PostForm("name"))
	if filename == "" {
		filename = file.Filename
	}

	result, err := h.ingestService.Ingest(c.Request.Context(), data, filename, userID, ext)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, extract.ErrUnsupportedType):
			response.Error(c, http.StatusBadRequest, response.CodeUnsupportedFile, err.Error())
		case errors.Is(err, app.ErrNoContent):
			response.Error(c, http.StatusBadRequest, response.CodeEmptyDocument, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "ingest failed")
		}
		return
	}

	response.OK(c, result)
}

func (h *DocumentHandler) List(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	docs, err := h.ingestService.ListDocuments(userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list documents failed")
		return
	}

	response.OK(c, docs)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	docID64, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || docID64 == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid document id")
		return
	}

	if err := h.ingestService.DeleteDocument(userID, uint(docID64)); err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrDocumentNotFound):
			response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete document failed")
		}
		return
	}

	response.OK(c, gin.H{"deleted_document_id": uint(docID64)})
}
