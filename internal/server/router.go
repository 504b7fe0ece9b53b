package server

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/school-mgmt-api/internal/handler"
	"github.com/noah-isme/school-mgmt-api/internal/middleware"
	"github.com/noah-isme/school-mgmt-api/internal/models"
	"github.com/noah-isme/school-mgmt-api/internal/service"
	"github.com/noah-isme/school-mgmt-api/pkg/config"
	"github.com/noah-isme/school-mgmt-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/school-mgmt-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/school-mgmt-api/pkg/middleware/requestid"
)

// Handlers groups every HTTP handler mounted by the router.
type Handlers struct {
	Auth       *handler.AuthHandler
	Attendance *handler.AttendanceHandler
	Gradebook  *handler.GradebookHandler
	Students   *handler.StudentHandler
	Academic   *handler.AcademicHandler
	Exports    *handler.ExportHandler
	Metrics    *handler.MetricsHandler
}

// Options carries the cross-cutting dependencies of the router.
type Options struct {
	Config  *config.Config
	Logger  *zap.Logger
	Auth    middleware.Authenticator
	Metrics *service.MetricsService
}

// NewRouter builds the gin engine with the global middleware chain and all routes.
func NewRouter(opts Options, h Handlers) *gin.Engine {
	cfg := opts.Config
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(opts.Logger, actorFields))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.WithResponseMeta())
	if cfg.Metrics.Enabled {
		r.Use(middleware.Metrics(opts.Metrics))
	}

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	if cfg.Metrics.Enabled {
		r.GET("/metrics", h.Metrics.Prometheus)
		r.GET("/metrics/summary", h.Metrics.Summary)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", h.Auth.Login)
	api.GET("/exports/download/:token", h.Exports.Download)

	secured := api.Group("")
	secured.Use(middleware.JWT(opts.Auth))
	secured.GET("/auth/me", h.Auth.Me)

	registerAttendance(secured, h.Attendance)
	registerGradebook(secured, h.Gradebook)
	registerStudents(secured, h.Students)

	secured.GET("/classes", h.Academic.Classes)
	secured.GET("/classes/:id/sections", h.Academic.Sections)
	secured.GET("/classes/:id/subjects", h.Academic.Subjects)

	secured.POST("/exports/jobs", middleware.RequireCapability(models.CapRequestExports), h.Exports.Create)
	secured.GET("/exports/jobs/:id", h.Exports.Get)

	return r
}

func registerAttendance(g *gin.RouterGroup, h *handler.AttendanceHandler) {
	mark := middleware.RequireCapability(models.CapMarkAttendance)
	reports := middleware.RequireCapability(models.CapViewAttendanceReports)

	att := g.Group("/attendance")
	att.POST("", mark, h.Mark)
	att.POST("/bulk", mark, h.BulkMark)
	att.GET("/date/:date", reports, h.ByDate)
	att.GET("/student/:id", h.ByStudent)
	att.GET("/stats/:date", reports, h.Stats)
	att.POST("/summary", reports, h.Summary)
	att.POST("/summary/export", reports, h.ExportSummary)
	att.PUT("/:id", mark, h.Update)
	att.DELETE("/:id", middleware.RequireCapability(models.CapDeleteAttendance), h.Delete)
}

func registerGradebook(g *gin.RouterGroup, h *handler.GradebookHandler) {
	manageAssessments := middleware.RequireCapability(models.CapManageAssessments)
	manageGrades := middleware.RequireCapability(models.CapManageGrades)

	book := g.Group("/gradebook")
	book.POST("/assessments", manageAssessments, h.CreateAssessment)
	book.GET("/assessments", h.ListAssessments)
	book.GET("/assessments/:id", h.GetAssessment)
	book.PUT("/assessments/:id", manageAssessments, h.UpdateAssessment)
	book.DELETE("/assessments/:id", manageAssessments, h.DeleteAssessment)

	book.POST("/grades", manageGrades, h.CreateGrade)
	book.POST("/grades/bulk", manageGrades, h.BulkCreateGrades)
	book.GET("/grades/student/:id", h.StudentGrades)
	book.GET("/grades/assessment/:id", middleware.RequireCapability(models.CapViewAssessmentGrades), h.AssessmentGrades)
	book.PUT("/grades/:id", manageGrades, h.UpdateGrade)
	book.DELETE("/grades/:id", middleware.RequireCapability(models.CapDeleteGrades), h.DeleteGrade)
}

func registerStudents(g *gin.RouterGroup, h *handler.StudentHandler) {
	manage := middleware.RequireCapability(models.CapManageStudents)

	students := g.Group("/students")
	students.POST("", manage, h.Create)
	students.GET("", middleware.RequireCapability(models.CapViewStudents), h.List)
	students.GET("/:id", h.Get)
	students.PUT("/:id", manage, h.Update)
	students.DELETE("/:id", manage, h.Delete)
	students.GET("/:id/report-cards", h.ReportCards)
}

// actorFields adds the caller identity to access log lines.
func actorFields(c *gin.Context) []zap.Field {
	actor := middleware.ActorFrom(c)
	if actor == nil {
		return nil
	}
	return []zap.Field{
		zap.String("user_id", actor.UserID),
		zap.String("role", string(actor.Role)),
	}
}
