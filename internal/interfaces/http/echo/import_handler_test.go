package echo_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	app "github.com/leadflow/lead-import/internal/application/lead"
	httpecho "github.com/leadflow/lead-import/internal/interfaces/http/echo"
)

type fakeStart struct {
	got    app.StartImportInput
	output app.StartImportOutput
	err    error
}

func (f *fakeStart) Execute(ctx context.Context, in app.StartImportInput) (app.StartImportOutput, error) {
	f.got = in
	return f.output, f.err
}

type fakeResume struct {
	got    app.ResumeImportInput
	output app.ResumeImportOutput
	err    error
}

func (f *fakeResume) Execute(ctx context.Context, in app.ResumeImportInput) (app.ResumeImportOutput, error) {
	f.got = in
	return f.output, f.err
}

type fakeGet struct {
	output app.ImportJobOutput
	err    error
}

func (f *fakeGet) Execute(ctx context.Context, in app.GetImportJobInput) (app.ImportJobOutput, error) {
	return f.output, f.err
}

type fakeList struct {
	got app.ListActiveImportJobsInput
	err error
}

func (f *fakeList) Execute(ctx context.Context, in app.ListActiveImportJobsInput) (app.ListActiveImportJobsOutput, error) {
	f.got = in
	return app.ListActiveImportJobsOutput{Jobs: []app.ImportJobOutput{}}, f.err
}

type fakePreview struct {
	got app.PreviewImportInput
	err error
}

func (f *fakePreview) Execute(ctx context.Context, in app.PreviewImportInput) (app.PreviewImportOutput, error) {
	f.got = in
	if in.Upload != nil {
		parsed, err := app.ParseCSVReader(in.Upload, in.MaxBytes)
		if err != nil {
			return app.PreviewImportOutput{}, err
		}
		return app.PreviewImportOutput{Headers: parsed.Headers, TotalRows: len(parsed.Rows)}, nil
	}
	return app.PreviewImportOutput{Headers: []string{"Name"}}, f.err
}

type fakes struct {
	start   *fakeStart
	resume  *fakeResume
	get     *fakeGet
	list    *fakeList
	preview *fakePreview
}

func newServer(t *testing.T) (*echo.Echo, *fakes) {
	t.Helper()

	f := &fakes{
		start:   &fakeStart{output: app.StartImportOutput{Success: true, JobID: "job-1", Message: "Import started"}},
		resume:  &fakeResume{},
		get:     &fakeGet{},
		list:    &fakeList{},
		preview: &fakePreview{},
	}
	e := echo.New()
	handler := httpecho.NewImportHandler(httpecho.ImportUseCases{
		Start:   f.start,
		Resume:  f.resume,
		Get:     f.get,
		List:    f.list,
		Preview: f.preview,
	}, 1024)
	httpecho.RegisterRoutes(e, handler, nil)
	return e, f
}

func doJSON(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unexpected json: %v", err)
	}
	return got
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	body, ok := decode(t, rec)["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error envelope, got %s", rec.Body.String())
	}
	code, _ := body["code"].(string)
	return code
}

const startBody = `{
  "team_id": "team-1",
  "user_id": "user-1",
  "file_name": "leads.csv",
  "headers": ["Name"],
  "rows": [["Acme"]],
  "mappings": [{"source_column_name": "Name", "target_field_key": "name"}],
  "duplicate_policy": {"detection_field": "email", "action": "skip"}
}`

func TestStartImportSuccess(t *testing.T) {
	t.Parallel()

	e, f := newServer(t)
	rec := doJSON(e, http.MethodPost, "/api/v1/imports/leads", startBody)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	data, ok := decode(t, rec)["data"].(map[string]any)
	if !ok {
		t.Fatalf("unexpected data payload: %s", rec.Body.String())
	}
	if data["job_id"] != "job-1" || data["success"] != true {
		t.Fatalf("unexpected data: %#v", data)
	}
	if f.start.got.TeamID != "team-1" || len(f.start.got.Rows) != 1 {
		t.Fatalf("unexpected use case input: %+v", f.start.got)
	}
	if f.start.got.DuplicatePolicy == nil || f.start.got.DuplicatePolicy.Action != "skip" {
		t.Fatalf("expected duplicate policy to be passed through, got %+v", f.start.got.DuplicatePolicy)
	}
}

func TestStartImportParsesCSVText(t *testing.T) {
	t.Parallel()

	e, f := newServer(t)
	body := `{"team_id":"team-1","file_name":"leads.csv","csv":"Name,Email\nAcme,a@acme.test\n",
	  "mappings":[{"source_column_name":"Name","target_field_key":"name"}]}`
	rec := doJSON(e, http.MethodPost, "/api/v1/imports/leads", body)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(f.start.got.Headers) != 2 || f.start.got.Rows[0][1] != "a@acme.test" {
		t.Fatalf("expected parsed csv, got %+v", f.start.got)
	}
}

func TestStartImportBadJSON(t *testing.T) {
	t.Parallel()

	e, _ := newServer(t)
	rec := doJSON(e, http.MethodPost, "/api/v1/imports/leads", `{"team_id":`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestStartImportValidatesRequest(t *testing.T) {
	t.Parallel()

	e, _ := newServer(t)
	rec := doJSON(e, http.MethodPost, "/api/v1/imports/leads", `{"file_name":"leads.csv","mappings":[{"source_column_name":"Name"}]}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "invalid_request" {
		t.Fatalf("unexpected code: %s", code)
	}
}

func TestStartImportMapsInputErrors(t *testing.T) {
	t.Parallel()

	e, f := newServer(t)
	f.start.err = app.ErrMissingRequiredMapping
	rec := doJSON(e, http.MethodPost, "/api/v1/imports/leads", startBody)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "missing_name_mapping" {
		t.Fatalf("unexpected code: %s", code)
	}
}

func TestStartImportHidesInternalErrors(t *testing.T) {
	t.Parallel()

	e, f := newServer(t)
	f.start.err = app.ErrStartImport
	rec := doJSON(e, http.MethodPost, "/api/v1/imports/leads", startBody)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "internal_error" {
		t.Fatalf("unexpected code: %s", code)
	}
}

func TestResumeImport(t *testing.T) {
	t.Parallel()

	e, f := newServer(t)
	f.resume.output = app.ResumeImportOutput{Success: true, JobID: "job-1", StartRow: 40}
	rec := doJSON(e, http.MethodPost, "/api/v1/imports/leads/job-1/resume", `{"last_processed_row":40}`)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if f.resume.got.JobID != "job-1" || f.resume.got.LastProcessedRow == nil || *f.resume.got.LastProcessedRow != 40 {
		t.Fatalf("unexpected use case input: %+v", f.resume.got)
	}
}

func TestResumeImportWithoutBody(t *testing.T) {
	t.Parallel()

	e, f := newServer(t)
	rec := doJSON(e, http.MethodPost, "/api/v1/imports/leads/job-1/resume", "")

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if f.resume.got.LastProcessedRow != nil {
		t.Fatalf("expected no explicit row, got %d", *f.resume.got.LastProcessedRow)
	}
}

func TestResumeImportConflicts(t *testing.T) {
	t.Parallel()

	cases := map[error]string{
		app.ErrCannotResume: "cannot_resume",
		app.ErrNotResumable: "not_resumable",
	}
	for err, want := range cases {
		e, f := newServer(t)
		f.resume.err = err
		rec := doJSON(e, http.MethodPost, "/api/v1/imports/leads/job-1/resume", "")

		if rec.Code != http.StatusConflict {
			t.Fatalf("%v: expected 409, got %d", err, rec.Code)
		}
		if code := errorCode(t, rec); code != want {
			t.Fatalf("%v: unexpected code %s", err, code)
		}
	}
}

func TestGetImportJobNotFound(t *testing.T) {
	t.Parallel()

	e, f := newServer(t)
	f.get.err = app.ErrImportJobNotFound
	rec := doJSON(e, http.MethodGet, "/api/v1/imports/leads/f7bc5d17-e7b2-49a1-9fd2-061b58f44f85", "")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetImportJobSuccess(t *testing.T) {
	t.Parallel()

	e, f := newServer(t)
	f.get.output = app.ImportJobOutput{ID: "job-1", Status: "processing", Progress: 40}
	rec := doJSON(e, http.MethodGet, "/api/v1/imports/leads/job-1", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	data := decode(t, rec)["data"].(map[string]any)
	if data["status"] != "processing" {
		t.Fatalf("unexpected data: %#v", data)
	}
}

func TestListActiveImportJobs(t *testing.T) {
	t.Parallel()

	e, f := newServer(t)
	rec := doJSON(e, http.MethodGet, "/api/v1/imports/leads?team_id=team-1&limit=5", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if f.list.got.TeamID != "team-1" || f.list.got.Limit != 5 {
		t.Fatalf("unexpected use case input: %+v", f.list.got)
	}

	rec = doJSON(e, http.MethodGet, "/api/v1/imports/leads?team_id=team-1&limit=many", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad limit, got %d", rec.Code)
	}
}

func TestPreviewImportJSON(t *testing.T) {
	t.Parallel()

	e, f := newServer(t)
	rec := doJSON(e, http.MethodPost, "/api/v1/imports/leads/preview", `{"team_id":"team-1","csv":"Name\nAcme\n"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if f.preview.got.CSV != "Name\nAcme\n" || f.preview.got.TeamID != "team-1" {
		t.Fatalf("unexpected use case input: %+v", f.preview.got)
	}
}

func TestPreviewImportJSONTooLarge(t *testing.T) {
	t.Parallel()

	e, _ := newServer(t)
	big := make([]byte, 2048)
	for i := range big {
		big[i] = 'a'
	}
	rec := doJSON(e, http.MethodPost, "/api/v1/imports/leads/preview", `{"team_id":"team-1","csv":"`+string(big)+`"}`)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

func TestPreviewImportMultipart(t *testing.T) {
	t.Parallel()

	e, f := newServer(t)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("team_id", "team-1"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	part, err := w.CreateFormFile("file", "leads.csv")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write([]byte("Name,Email\nAcme,a@acme.test\nBeta,b@beta.test\n"))
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports/leads/preview", &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if f.preview.got.TeamID != "team-1" || f.preview.got.MaxBytes != 1024 {
		t.Fatalf("unexpected use case input: %+v", f.preview.got)
	}
	data := decode(t, rec)["data"].(map[string]any)
	if data["total_rows"] != float64(2) {
		t.Fatalf("unexpected data: %#v", data)
	}
}

func multipartPreview(t *testing.T, e *echo.Echo, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	part, err := w.CreateFormFile("file", "leads.csv")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write([]byte("Name\nAcme\n"))
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports/leads/preview", &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestPreviewImportMultipartRejectsBadSampleSize(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"lots", "-1", "51"} {
		e, f := newServer(t)
		rec := multipartPreview(t, e, map[string]string{"team_id": "team-1", "sample_size": raw})

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("sample_size %q: expected 400, got %d: %s", raw, rec.Code, rec.Body.String())
		}
		if f.preview.got.TeamID != "" {
			t.Fatalf("sample_size %q: use case must not run", raw)
		}
	}
}

func TestPreviewImportMultipartPassesSampleSize(t *testing.T) {
	t.Parallel()

	e, f := newServer(t)
	rec := multipartPreview(t, e, map[string]string{"team_id": "team-1", "sample_size": "3"})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if f.preview.got.SampleSize != 3 {
		t.Fatalf("expected sample size 3, got %d", f.preview.got.SampleSize)
	}
}
