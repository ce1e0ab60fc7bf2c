package echo

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	app "github.com/leadflow/lead-import/internal/application/lead"
	domain "github.com/leadflow/lead-import/internal/domain/lead"
)

type ImportHandler struct {
	start         app.StartImport
	resume        app.ResumeImport
	get           app.GetImportJob
	list          app.ListActiveImportJobs
	preview       app.PreviewImport
	maxUploadSize int64
}

type ImportUseCases struct {
	Start   app.StartImport
	Resume  app.ResumeImport
	Get     app.GetImportJob
	List    app.ListActiveImportJobs
	Preview app.PreviewImport
}

// startImportRequest carries either pre-parsed rows or the raw CSV text.
type startImportRequest struct {
	TeamID          string                  `json:"team_id" validate:"required"`
	UserID          string                  `json:"user_id"`
	FileName        string                  `json:"file_name" validate:"required,max=255"`
	Headers         []string                `json:"headers"`
	Rows            [][]string              `json:"rows"`
	CSV             string                  `json:"csv"`
	Mappings        []domain.ColumnMapping  `json:"mappings" validate:"required,min=1,dive"`
	DuplicatePolicy *domain.DuplicatePolicy `json:"duplicate_policy"`
}

type resumeImportRequest struct {
	LastProcessedRow *int `json:"last_processed_row" validate:"omitempty,min=0"`
}

type previewImportRequest struct {
	TeamID     string                 `json:"team_id" validate:"required"`
	CSV        string                 `json:"csv" validate:"required"`
	Mappings   []domain.ColumnMapping `json:"mappings"`
	SampleSize int                    `json:"sample_size" validate:"omitempty,min=1,max=50"`
}

type previewUploadForm struct {
	TeamID     string `form:"team_id" validate:"required"`
	SampleSize int    `form:"sample_size" validate:"omitempty,min=1,max=50"`
}

func NewImportHandler(useCases ImportUseCases, maxUploadSize int64) *ImportHandler {
	return &ImportHandler{
		start:         useCases.Start,
		resume:        useCases.Resume,
		get:           useCases.Get,
		list:          useCases.List,
		preview:       useCases.Preview,
		maxUploadSize: maxUploadSize,
	}
}

func (h *ImportHandler) StartImport(c echo.Context) error {
	var req startImportRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "bad_request", "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid_request", err.Error())
	}

	headers, rows := req.Headers, req.Rows
	if len(rows) == 0 && strings.TrimSpace(req.CSV) != "" {
		parsed, err := app.ParseCSV(req.CSV)
		if err != nil {
			return failWith(c, err, "failed to parse csv")
		}
		headers, rows = parsed.Headers, parsed.Rows
	}

	out, err := h.start.Execute(c.Request().Context(), app.StartImportInput{
		Rows:            rows,
		Headers:         headers,
		Mappings:        req.Mappings,
		DuplicatePolicy: req.DuplicatePolicy,
		TeamID:          req.TeamID,
		UserID:          req.UserID,
		FileName:        req.FileName,
	})
	if err != nil {
		return failWith(c, err, "failed to start import")
	}

	return c.JSON(http.StatusAccepted, apiResponse{Data: out})
}

func (h *ImportHandler) ResumeImport(c echo.Context) error {
	var req resumeImportRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return fail(c, http.StatusBadRequest, "bad_request", "invalid request body")
		}
		if err := c.Validate(&req); err != nil {
			return fail(c, http.StatusBadRequest, "invalid_request", err.Error())
		}
	}

	out, err := h.resume.Execute(c.Request().Context(), app.ResumeImportInput{
		JobID:            c.Param("id"),
		LastProcessedRow: req.LastProcessedRow,
	})
	if err != nil {
		return failWith(c, err, "failed to resume import")
	}

	return c.JSON(http.StatusAccepted, apiResponse{Data: out})
}

func (h *ImportHandler) GetImportJob(c echo.Context) error {
	out, err := h.get.Execute(c.Request().Context(), app.GetImportJobInput{ID: c.Param("id")})
	if err != nil {
		return failWith(c, err, "failed to get import job")
	}
	return c.JSON(http.StatusOK, apiResponse{Data: out})
}

func (h *ImportHandler) ListActiveImportJobs(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fail(c, http.StatusBadRequest, "invalid_request", "limit must be a number")
		}
		limit = n
	}

	out, err := h.list.Execute(c.Request().Context(), app.ListActiveImportJobsInput{
		TeamID: c.QueryParam("team_id"),
		Limit:  limit,
	})
	if err != nil {
		return failWith(c, err, "failed to list import jobs")
	}
	return c.JSON(http.StatusOK, apiResponse{Data: out})
}

// PreviewImport accepts either a multipart upload in field "file" or a JSON
// body with the CSV text.
func (h *ImportHandler) PreviewImport(c echo.Context) error {
	in := app.PreviewImportInput{MaxBytes: h.maxUploadSize}

	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return fail(c, http.StatusBadRequest, "bad_request", "file is required")
		}
		f, err := fileHeader.Open()
		if err != nil {
			return fail(c, http.StatusBadRequest, "bad_request", "file could not be read")
		}
		defer f.Close()

		var form previewUploadForm
		if err := c.Bind(&form); err != nil {
			return fail(c, http.StatusBadRequest, "bad_request", "invalid form fields")
		}
		if err := c.Validate(&form); err != nil {
			return fail(c, http.StatusBadRequest, "invalid_request", err.Error())
		}

		in.Upload = f
		in.TeamID = form.TeamID
		in.SampleSize = form.SampleSize
	} else {
		var req previewImportRequest
		if err := c.Bind(&req); err != nil {
			return fail(c, http.StatusBadRequest, "bad_request", "invalid request body")
		}
		if err := c.Validate(&req); err != nil {
			return fail(c, http.StatusBadRequest, "invalid_request", err.Error())
		}
		if h.maxUploadSize > 0 && int64(len(req.CSV)) > h.maxUploadSize {
			return failWith(c, app.ErrFileTooLarge, "")
		}
		in.CSV = req.CSV
		in.TeamID = req.TeamID
		in.Mappings = req.Mappings
		in.SampleSize = req.SampleSize
	}

	out, err := h.preview.Execute(c.Request().Context(), in)
	if err != nil {
		return failWith(c, err, "failed to preview import")
	}
	return c.JSON(http.StatusOK, apiResponse{Data: out})
}
