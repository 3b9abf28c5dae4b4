package routes

import (
	"questionnaire_editor/editor"
	"questionnaire_editor/handlers"
	"questionnaire_editor/middleware"

	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all the routes for the application
func SetupRoutes(r *gin.Engine, registry *editor.Registry, store handlers.Pinger, jwtSecret []byte) {
	r.SetHTMLTemplate(handlers.Templates())

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(store)
	editorHandler := handlers.NewEditorHandler(registry)

	// Public routes
	r.GET("/health", healthHandler.HealthCheck)

	// Protected routes
	protected := r.Group("/")
	protected.Use(middleware.AuthMiddleware(jwtSecret))
	{
		// Root route, where a successful update lands
		protected.GET("/", editorHandler.Index)

		// Opening an editor for a questionnaire
		protected.GET("/questionnaires/:id/edit", editorHandler.OpenEditor)

		// Editor session routes
		protected.GET("/editor/:sid", editorHandler.GetEditor)
		protected.DELETE("/editor/:sid", editorHandler.CloseEditor)
		protected.PUT("/editor/:sid/fields", editorHandler.UpdateFields)
		protected.POST("/editor/:sid/submit", editorHandler.Submit)

		// Question routes
		protected.POST("/editor/:sid/questions", editorHandler.AddQuestion)
		protected.PATCH("/editor/:sid/questions/:key", editorHandler.UpdateQuestion)
		protected.DELETE("/editor/:sid/questions/:key", editorHandler.RemoveQuestion)

		// Option routes
		protected.POST("/editor/:sid/questions/:key/options", editorHandler.AddOption)
		protected.PATCH("/editor/:sid/questions/:key/options/:index", editorHandler.UpdateOption)
		protected.DELETE("/editor/:sid/questions/:key/options/:index", editorHandler.RemoveOption)
	}
}
