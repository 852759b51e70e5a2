package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/pythagon-backend/internal/domain"
	"github.com/yungbote/pythagon-backend/internal/http/middleware"
	"github.com/yungbote/pythagon-backend/internal/http/response"
	"github.com/yungbote/pythagon-backend/internal/platform/ctxutil"
	"github.com/yungbote/pythagon-backend/internal/platform/logger"
	"github.com/yungbote/pythagon-backend/internal/services"
)

const defaultMaxUploadBytes = 32 << 20

type ProblemHandler struct {
	log            *logger.Logger
	ingestion      services.IngestionService
	maxUploadBytes int64
}

func NewProblemHandler(log *logger.Logger, ingestion services.IngestionService, maxUploadBytes int64) *ProblemHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &ProblemHandler{
		log:            log.With("handler", "ProblemHandler"),
		ingestion:      ingestion,
		maxUploadBytes: maxUploadBytes,
	}
}

type UploadResponse struct {
	Message    string            `json:"message"`
	DocumentID uuid.UUID         `json:"document_id"`
	TotalPages int               `json:"total_pages"`
	Problems   []*domain.Problem `json:"problems"`
}

// POST /upload
func (h *ProblemHandler) Upload(c *gin.Context) {
	owner := middleware.CallerID(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+(1<<20))

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.RespondError(c, http.StatusRequestEntityTooLarge, "upload_too_large", fmt.Errorf("file exceeds %d bytes", h.maxUploadBytes))
			return
		}
		response.RespondError(c, http.StatusBadRequest, "invalid_upload", fmt.Errorf("multipart field \"file\" is required"))
		return
	}
	if fh.Size > h.maxUploadBytes {
		response.RespondError(c, http.StatusRequestEntityTooLarge, "upload_too_large", fmt.Errorf("file exceeds %d bytes", h.maxUploadBytes))
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_upload", err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_upload", err)
		return
	}

	res, err := h.ingestion.Ingest(c.Request.Context(), owner, domain.Document{
		Filename: fh.Filename,
		MimeType: fh.Header.Get("Content-Type"),
		Data:     data,
	})
	if err != nil {
		kv := append([]interface{}{"filename", fh.Filename, "bytes", len(data), "error", err}, ctxutil.LogFields(c.Request.Context())...)
		h.log.Warn("upload rejected", kv...)
		response.RespondDomainError(c, err, "problem")
		return
	}
	response.RespondOK(c, UploadResponse{
		Message:    "PDF uploaded successfully",
		DocumentID: res.DocumentID,
		TotalPages: res.TotalUnits,
		Problems:   res.Units,
	})
}

// GET /problem/:id/status
func (h *ProblemHandler) GetStatus(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		response.RespondDomainError(c, err, "problem")
		return
	}
	p, err := h.ingestion.GetProblem(c.Request.Context(), middleware.CallerID(c), id)
	if err != nil {
		response.RespondDomainError(c, err, "problem")
		return
	}
	response.RespondOK(c, p)
}

// DELETE /problem/:id
func (h *ProblemHandler) Delete(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		response.RespondDomainError(c, err, "problem")
		return
	}
	if err := h.ingestion.DeleteProblem(c.Request.Context(), middleware.CallerID(c), id); err != nil {
		response.RespondDomainError(c, err, "problem")
		return
	}
	response.RespondOK(c, gin.H{"deleted": true, "id": id})
}

type DocumentResponse struct {
	DocumentID uuid.UUID         `json:"document_id"`
	TotalPages int               `json:"total_pages"`
	Problems   []*domain.Problem `json:"problems"`
}

// GET /document/:id/problems
func (h *ProblemHandler) ListDocument(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		response.RespondDomainError(c, err, "document")
		return
	}
	list, err := h.ingestion.ListDocument(c.Request.Context(), middleware.CallerID(c), id)
	if err != nil {
		response.RespondDomainError(c, err, "document")
		return
	}
	response.RespondOK(c, DocumentResponse{DocumentID: id, TotalPages: len(list), Problems: list})
}
