package bootstrap

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	app "github.com/leadflow/lead-import/internal/application/lead"
	"github.com/leadflow/lead-import/internal/application/progress"
	"github.com/leadflow/lead-import/internal/config"
	httpecho "github.com/leadflow/lead-import/internal/interfaces/http/echo"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func NewHTTPServer(cfg *config.Configuration, stores Stores, log *logrus.Entry) *echo.Echo {
	server := echo.New()
	server.HideBanner = true
	server.Validator = httpecho.NewValidator()

	server.Use(middleware.Recover())
	server.Use(middleware.RequestID())
	server.Use(middleware.BodyLimit(bodyLimit(cfg.Import.MaxUploadSize)))

	importHandler := httpecho.NewImportHandler(httpecho.ImportUseCases{
		Start:   app.NewStartImport(stores.Jobs, stores.Fields, stores.RowSets, stores.Tasks, log),
		Resume:  app.NewResumeImport(stores.Jobs, stores.RowSets, stores.Tasks, log),
		Get:     app.NewGetImportJob(stores.Jobs),
		List:    app.NewListActiveImportJobs(stores.Jobs),
		Preview: app.NewPreviewImport(stores.Fields),
	}, cfg.Import.MaxUploadSize)
	streamHandler := httpecho.NewStreamHandler(stores.Jobs, stores.Changes, progress.Config{Logger: log}, nil)

	httpecho.RegisterRoutes(server, importHandler, streamHandler)

	server.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.MetricsPath != "" {
		server.GET(cfg.MetricsPath, echo.WrapHandler(promhttp.Handler()))
	}

	return server
}

// NewSliceWorker wires the batch importer to the task queue.
func NewSliceWorker(cfg *config.Configuration, stores Stores, log *logrus.Entry) *app.SliceWorker {
	importer := app.NewBatchImporter(app.BatchImporterDeps{
		Jobs:      stores.Jobs,
		Leads:     stores.Leads,
		Fields:    stores.Fields,
		RowSets:   stores.RowSets,
		Queue:     stores.Tasks,
		Publisher: stores.Changes,
	}, app.BatchImporterConfig{
		SliceSize:   cfg.Import.SliceSize,
		BatchSize:   cfg.Import.BatchSize,
		MaxErrorLog: cfg.Import.MaxErrorLog,
		Logger:      log,
	})

	return app.NewSliceWorker(stores.Tasks, importer, app.SliceWorkerConfig{
		Workers:       cfg.Import.Workers,
		PollInterval:  cfg.Import.PollInterval,
		LeaseDuration: cfg.Import.LeaseDuration(),
		Logger:        log,
	})
}

// bodyLimit leaves headroom over the upload size for JSON and multipart
// framing.
func bodyLimit(maxUpload int64) string {
	if maxUpload <= 0 {
		return "10M"
	}
	return fmt.Sprintf("%dK", (maxUpload*2)/1024+1)
}
