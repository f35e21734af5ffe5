package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/alexvazquez-beep/video-transcriber-backend/internal/common"
	"github.com/alexvazquez-beep/video-transcriber-backend/internal/entity"
	"github.com/alexvazquez-beep/video-transcriber-backend/internal/metrics"
	"github.com/alexvazquez-beep/video-transcriber-backend/internal/pipeline"
	"github.com/alexvazquez-beep/video-transcriber-backend/internal/store"
	"github.com/alexvazquez-beep/video-transcriber-backend/web"
)

// Handler carries the HTTP-facing dependencies.
type Handler struct {
	uploads *store.UploadStore
	service *pipeline.Service
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewHandler(uploads *store.UploadStore, service *pipeline.Service, m *metrics.Metrics, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{uploads: uploads, service: service, metrics: m, logger: logger}
}

// Wire shapes. The JSON keys are the protocol; entities stay internal.
type uploadResponse struct {
	UploadID     string `json:"uploadId"`
	OriginalName string `json:"originalName"`
}

type createJobRequest struct {
	UploadID string `json:"uploadId"`
}

type createJobResponse struct {
	JobID string `json:"jobId"`
}

type progressResponse struct {
	Pct     int    `json:"pct"`
	Message string `json:"message"`
}

type jobResponse struct {
	JobID      string           `json:"jobId"`
	Status     string           `json:"status"`
	Progress   progressResponse `json:"progress"`
	ResultText string           `json:"resultText"`
	Error      string           `json:"error,omitempty"`
}

func toJobResponse(job entity.Job) jobResponse {
	return jobResponse{
		JobID:      job.ID.String(),
		Status:     string(job.Status),
		Progress:   progressResponse{Pct: job.Progress.Pct, Message: job.Progress.Message},
		ResultText: job.ResultText,
		Error:      job.Error,
	}
}

// Upload accepts a multipart file and registers it for later job creation.
func (h *Handler) Upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		h.logger.Warn("upload.missing_file", "request_id", common.RequestIDFromContext(c.Request().Context()))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no file uploaded"})
	}

	src, err := fh.Open()
	if err != nil {
		h.logger.Error("upload.open_failed", "original_name", fh.Filename, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not read upload"})
	}
	defer src.Close()

	up, err := h.uploads.Put(src, fh.Filename)
	if err != nil {
		h.logger.Error("upload.store_failed", "original_name", fh.Filename, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not store upload"})
	}
	h.metrics.UploadsReceived.Inc()

	return c.JSON(http.StatusOK, uploadResponse{
		UploadID:     up.ID.String(),
		OriginalName: up.OriginalName,
	})
}

// CreateJob starts the pipeline for a stored upload and returns immediately.
func (h *Handler) CreateJob(c echo.Context) error {
	var req createJobRequest
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.UploadID) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "uploadId is required"})
	}

	uploadID, err := uuid.Parse(req.UploadID)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "upload not found"})
	}

	jobID, err := h.service.CreateJob(c.Request().Context(), uploadID)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "upload not found"})
		case errors.Is(err, common.ErrNotConfigured):
			h.logger.Error("jobs.create.unconfigured", "upload_id", uploadID, "error", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "transcription is not configured"})
		default:
			h.logger.Error("jobs.create.failed", "upload_id", uploadID, "error", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create job"})
		}
	}

	return c.JSON(http.StatusOK, createJobResponse{JobID: jobID.String()})
}

// GetJob returns a point-in-time snapshot of the job record.
func (h *Handler) GetJob(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "job not found"})
	}

	job, err := h.service.Job(id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "job not found"})
		}
		h.logger.Error("jobs.get.failed", "job_id", id, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not load job"})
	}

	return c.JSON(http.StatusOK, toJobResponse(job))
}

// Index serves the embedded entry page.
func (h *Handler) Index(c echo.Context) error {
	return c.HTMLBlob(http.StatusOK, web.IndexHTML)
}

// Health reports process liveness.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
