package api

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/skillsenselab/dialtone/errors"
	"github.com/skillsenselab/dialtone/logger"
	"github.com/skillsenselab/dialtone/server"
	"github.com/skillsenselab/dialtone/transcribe"
	"github.com/skillsenselab/dialtone/upload"
	"github.com/skillsenselab/dialtone/validation"
)

// AudioAPI serves the upload and transcription endpoints.
type AudioAPI struct {
	uploads  *upload.Service
	pipeline *transcribe.Pipeline
	log      *logger.Logger
}

// NewAudioAPI builds the API around its collaborators.
func NewAudioAPI(uploads *upload.Service, pipeline *transcribe.Pipeline, log *logger.Logger) *AudioAPI {
	if log == nil {
		log = logger.NewDefault("api")
	}
	return &AudioAPI{
		uploads:  uploads,
		pipeline: pipeline,
		log:      log.WithComponent("api.audio"),
	}
}

// RegisterRoutes mounts the audio endpoints under /api/v1/audio.
func (a *AudioAPI) RegisterRoutes(r gin.IRouter) {
	g := r.Group("/api/v1/audio")
	g.POST("/upload", a.Upload)
	g.POST("/transcribe", a.Transcribe)
	g.GET("/transcriptions/:id", a.Status)
	g.DELETE("/transcriptions/:id", a.Cancel)
	g.GET("/status", a.ServiceStatus)
}

// Upload accepts a multipart audio file and stores it for later
// transcription.
func (a *AudioAPI) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		server.RespondWithError(c, apperrors.MissingFile())
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	defer f.Close()

	up, err := a.uploads.Save(
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		fileHeader.Size,
		f,
	)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondCreated(c, up)
}

// TranscribeRequest is the transcription submission payload.
type TranscribeRequest struct {
	UploadID string `json:"upload_id" validate:"required,uuid"`
	Language string `json:"language" validate:"omitempty,max=8"`
}

// Transcribe runs the transcription pipeline for a stored upload and
// returns the outcome. The request blocks until the job finishes, times
// out, or is cancelled.
func (a *AudioAPI) Transcribe(c *gin.Context) {
	var req TranscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, apperrors.Validation("request body must be valid JSON"))
		return
	}
	if err := validation.Validate(req); err != nil {
		server.RespondWithError(c, err)
		return
	}

	outcome, err := a.pipeline.TranscribeUpload(c.Request.Context(), req.UploadID, req.Language)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, outcome)
}

// Status reports the state of an in-flight transcription job.
func (a *AudioAPI) Status(c *gin.Context) {
	id := c.Param("id")
	if err := validation.Required("id", id); err != nil {
		server.RespondWithError(c, err)
		return
	}

	status, err := a.pipeline.GetStatus(id)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, status)
}

// Cancel requests best-effort cancellation of an in-flight job.
func (a *AudioAPI) Cancel(c *gin.Context) {
	id := c.Param("id")
	if err := validation.Required("id", id); err != nil {
		server.RespondWithError(c, err)
		return
	}

	accepted := a.pipeline.Cancel(id)
	server.RespondOK(c, gin.H{
		"job_id":    id,
		"cancelled": accepted,
	})
}

// ServiceStatus reports pipeline capacity, active jobs, and model state.
func (a *AudioAPI) ServiceStatus(c *gin.Context) {
	server.RespondOK(c, a.pipeline.ServiceStatus())
}
