package bootstrap_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/leadflow/lead-import/internal/bootstrap"
	"github.com/leadflow/lead-import/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Configuration {
	return &config.Configuration{
		StoreDriver: "memory",
		RowStore:    "local",
		MetricsPath: "/metrics",
		Import: config.ImportOptions{
			SliceSize:     2,
			BatchSize:     1,
			MaxErrorLog:   10,
			Workers:       1,
			PollInterval:  10 * time.Millisecond,
			LeaseSeconds:  30,
			MaxUploadSize: 1 << 20,
		},
	}
}

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func serve(server *echo.Echo, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	server := bootstrap.NewHTTPServer(cfg, bootstrap.NewMemoryStores(nil, nil), quietLogger())

	assert.Equal(t, http.StatusOK, serve(server, http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusOK, serve(server, http.MethodGet, "/metrics", nil).Code)
}

func TestImportRunsEndToEnd(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	log := quietLogger()
	stores := bootstrap.NewMemoryStores(nil, nil)
	server := bootstrap.NewHTTPServer(cfg, stores, log)
	worker := bootstrap.NewSliceWorker(cfg, stores, log)

	body, err := json.Marshal(map[string]any{
		"team_id":   "team-1",
		"user_id":   "user-1",
		"file_name": "leads.csv",
		"csv":       "Name,Email,Tier\nAcme,a@acme.test,gold\nBeta,b@beta.test,silver\n,nobody@x.test,\nGamma,g@gamma.test,gold\n",
		"mappings": []map[string]any{
			{"source_column_name": "Name", "target_field_key": "name"},
			{"source_column_name": "Email", "target_field_key": "email"},
			{"source_column_name": "Tier", "creates_new_custom_field": true, "new_field_type": "text"},
		},
	})
	require.NoError(t, err)

	rec := serve(server, http.MethodPost, "/api/v1/imports/leads", body)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var started struct {
		Data struct {
			JobID string `json:"job_id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	require.NotEmpty(t, started.Data.JobID)

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		task, err := stores.Tasks.ClaimNext(ctx, time.Minute)
		require.NoError(t, err)
		if task == nil {
			break
		}
		require.NoError(t, worker.RunTask(ctx, *task))
	}

	rec = serve(server, http.MethodGet, "/api/v1/imports/leads/"+started.Data.JobID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var job struct {
		Data struct {
			Status           string `json:"status"`
			TotalRecords     int64  `json:"total_records"`
			ProcessedRecords int64  `json:"processed_records"`
			Progress         int    `json:"progress"`
			ErrorDetails     struct {
				NewRecords    int64 `json:"new_records"`
				SkippedNoName int64 `json:"skipped_no_name"`
			} `json:"error_details"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, "completed", job.Data.Status)
	assert.Equal(t, int64(4), job.Data.TotalRecords)
	assert.Equal(t, int64(3), job.Data.ProcessedRecords)
	assert.Equal(t, int64(3), job.Data.ErrorDetails.NewRecords)
	assert.Equal(t, int64(1), job.Data.ErrorDetails.SkippedNoName)
	assert.Equal(t, 100, job.Data.Progress)
}
