package echo

import e "github.com/labstack/echo/v4"

func RegisterRoutes(server *e.Echo, importHandler *ImportHandler, streamHandler *StreamHandler) {
	if server.Validator == nil {
		server.Validator = NewValidator()
	}

	api := server.Group("/api/v1/imports")
	api.POST("/leads", importHandler.StartImport)
	api.POST("/leads/preview", importHandler.PreviewImport)
	api.GET("/leads", importHandler.ListActiveImportJobs)
	api.GET("/leads/:id", importHandler.GetImportJob)
	api.POST("/leads/:id/resume", importHandler.ResumeImport)

	if streamHandler != nil {
		api.GET("/stream", streamHandler.Stream)
	}
}
