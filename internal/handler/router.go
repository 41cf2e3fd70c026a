package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/vcscsvcscs/rarecare-backend/internal/middleware"
	"go.uber.org/zap"
)

// Handlers groups every HTTP handler of the API
type Handlers struct {
	Tracking  *TrackingHandler
	Notes     *NoteHandler
	Messages  *MessageHandler
	Rarescope *RarescopeHandler
	Patient   *PatientHandler
	System    *SystemHandler
}

// RegisterRoutes registers all API routes on r. Patient routes resolve
// :patientToken through decrypter before reaching a handler.
func RegisterRoutes(r gin.IRouter, h Handlers, decrypter middleware.IDDecrypter, logger *zap.Logger) {
	r.GET("/health", h.System.Health)
	r.GET("/openapi.json", h.System.OpenAPI)

	v1 := r.Group("/api/v1")
	v1.GET("/rarescope/questions", h.Rarescope.Questions)

	patient := v1.Group("/patients/:patientToken",
		middleware.PatientResolver(decrypter, logger),
		middleware.AuditClient(),
	)
	patient.DELETE("", h.Patient.DeleteData)
	patient.GET("/export", h.Patient.ExportData)

	patient.GET("/rarescope", h.Rarescope.Get)
	patient.PUT("/rarescope", h.Rarescope.Save)
	patient.DELETE("/rarescope", h.Rarescope.Delete)

	patient.GET("/notes", h.Notes.List)
	patient.POST("/notes", h.Notes.Create)
	patient.GET("/notes/:noteId", h.Notes.Get)
	patient.PUT("/notes/:noteId", h.Notes.Update)
	patient.DELETE("/notes/:noteId", h.Notes.Delete)

	patient.GET("/messages", h.Messages.List)
	patient.POST("/messages", h.Messages.Create)
	patient.DELETE("/messages/:messageId", h.Messages.Delete)

	patient.GET("/tracking", h.Tracking.ListRecords)
	patient.DELETE("/tracking", h.Tracking.DeletePatientRecords)

	condition := patient.Group("/tracking/:condition")
	condition.GET("", h.Tracking.GetRecord)
	condition.DELETE("", h.Tracking.DeleteRecord)
	condition.POST("/import", h.Tracking.Import)
	condition.GET("/import/original", h.Tracking.OriginalImport)
	condition.POST("/entries", h.Tracking.AddEntry)
	condition.DELETE("/entries", h.Tracking.DeleteRange)
	condition.DELETE("/entries/:timestamp", h.Tracking.DeleteEntry)
	condition.GET("/stats", h.Tracking.Statistics)
	condition.POST("/insights", h.Tracking.GenerateInsights)
	condition.GET("/report.pdf", h.Tracking.ReportPDF)
	condition.GET("/export.xlsx", h.Tracking.ExportXLSX)
}
