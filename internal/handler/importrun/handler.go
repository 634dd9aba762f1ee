package importrun

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hospitalops/admission-api/internal/handler"
	"github.com/hospitalops/admission-api/internal/ingest"
	"github.com/hospitalops/admission-api/internal/model"
	"github.com/hospitalops/admission-api/internal/pipeline"
	apperrors "github.com/hospitalops/admission-api/pkg/errors"
	"github.com/hospitalops/admission-api/pkg/logger"
)

// Handler exposes the import pipeline over HTTP. A POST uploads the
// four source spreadsheets and starts a run in the background; the
// run id can then be polled for progress and the final report.
type Handler struct {
	pipeline       *pipeline.Pipeline
	maxUploadBytes int64
	log            *logger.Logger
}

func NewHandler(p *pipeline.Pipeline, maxUploadBytes int64, log *logger.Logger) *Handler {
	return &Handler{
		pipeline:       p,
		maxUploadBytes: maxUploadBytes,
		log:            log,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	imports := r.Group("/imports")
	{
		imports.POST("", h.StartImport)
		imports.GET("/:id", h.GetRun)
		imports.GET("/:id/report", h.GetReport)
	}
}

// StartImport accepts a multipart form with one file per source
// (fields "grd", "admissions", "beds", "social") and launches the
// pipeline asynchronously. It replies 202 with the run id.
func (h *Handler) StartImport(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	files := make(map[ingest.Source]ingest.File, len(ingest.RequiredSources))
	for _, src := range ingest.RequiredSources {
		fh, err := c.FormFile(string(src))
		if err != nil {
			c.Error(apperrors.BadRequest(fmt.Sprintf("missing file for source %q", src), err))
			return
		}
		f, err := bufferUpload(fh)
		if err != nil {
			h.log.Error(err, "failed to read upload", "source", src)
			c.Error(apperrors.BadRequest(fmt.Sprintf("failed to read file for source %q", src), err))
			return
		}
		files[src] = f
	}

	run := h.pipeline.NewRun()
	go func() {
		if _, err := h.pipeline.Run(context.Background(), run, files); err != nil {
			h.log.Error(err, "import run failed", "run", run.ID)
		}
	}()

	c.JSON(http.StatusAccepted, handler.NewSuccessResponse(gin.H{
		"run_id": run.ID,
		"status": run.Status,
	}))
}

// GetRun returns the current state of a run, including the report
// once it finishes.
func (h *Handler) GetRun(c *gin.Context) {
	run, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(run))
}

// GetReport returns just the final report. It replies 409 while the
// run is still in flight.
func (h *Handler) GetReport(c *gin.Context) {
	run, ok := h.lookup(c)
	if !ok {
		return
	}
	switch run.Status {
	case model.RunStatusCompleted:
		c.JSON(http.StatusOK, handler.NewSuccessResponse(run.Report))
	case model.RunStatusFailed:
		c.JSON(http.StatusOK, handler.NewErrorResponse(run.Error))
	default:
		c.Error(apperrors.Conflict("import run still in progress"))
	}
}

func (h *Handler) lookup(c *gin.Context) (*model.ImportRun, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(apperrors.BadRequest("invalid run id", err))
		return nil, false
	}
	run, ok := h.pipeline.Registry().Get(id)
	if !ok {
		c.Error(apperrors.NotFound("import run"))
		return nil, false
	}
	return run, true
}

// bufferUpload copies the upload into memory so the pipeline can keep
// reading after the request body is gone.
func bufferUpload(fh *multipart.FileHeader) (ingest.File, error) {
	f, err := fh.Open()
	if err != nil {
		return ingest.File{}, err
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, f); err != nil {
		return ingest.File{}, err
	}
	return ingest.File{Reader: &buf, Format: formatFor(fh.Filename)}, nil
}

func formatFor(filename string) ingest.Format {
	if strings.EqualFold(filepath.Ext(filename), ".csv") {
		return ingest.FormatCSV
	}
	return ingest.FormatXLSX
}
