package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/school-mgmt-api/api/swagger"
	"github.com/noah-isme/school-mgmt-api/internal/handler"
	"github.com/noah-isme/school-mgmt-api/internal/repository"
	"github.com/noah-isme/school-mgmt-api/internal/server"
	"github.com/noah-isme/school-mgmt-api/internal/service"
	"github.com/noah-isme/school-mgmt-api/pkg/cache"
	"github.com/noah-isme/school-mgmt-api/pkg/config"
	"github.com/noah-isme/school-mgmt-api/pkg/database"
	"github.com/noah-isme/school-mgmt-api/pkg/jobs"
	"github.com/noah-isme/school-mgmt-api/pkg/logger"
	"github.com/noah-isme/school-mgmt-api/pkg/storage"
)

// @title School Management API
// @version 1.0.0
// @description Attendance, gradebook and student records for a school.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(cfg.Database, logr); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
	}

	validate := validator.New()
	paging := service.NewPaging(cfg.Pagination)
	metricsSvc := service.NewMetricsService()
	tx := database.NewTransactor(db)

	userRepo := repository.NewUserRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	parentRepo := repository.NewParentRepository(db)
	academicRepo := repository.NewAcademicRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	assessmentRepo := repository.NewAssessmentRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	reportCardRepo := repository.NewReportCardRepository(db)
	exportJobRepo := repository.NewExportJobRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Stats.CacheTTL, logr, cfg.Stats.CacheEnabled && cacheRepo.Enabled())
	authSvc := service.NewAuthService(userRepo, teacherRepo, studentRepo, parentRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	attendanceSvc := service.NewAttendanceService(attendanceRepo, studentRepo, parentRepo, tx, cacheSvc, metricsSvc, validate, logr)
	assessmentSvc := service.NewAssessmentService(assessmentRepo, gradeRepo, academicRepo, teacherRepo, tx, paging, validate, logr)
	gradeSvc := service.NewGradeService(gradeRepo, assessmentRepo, studentRepo, parentRepo, tx, metricsSvc, validate, logr)
	studentSvc := service.NewStudentService(service.StudentServiceDeps{
		Students:    studentRepo,
		Users:       userRepo,
		Attendance:  attendanceRepo,
		ReportCards: reportCardRepo,
		Sections:    academicRepo,
		Links:       parentRepo,
		Tx:          tx,
	}, paging, validate, logr)
	academicSvc := service.NewAcademicService(academicRepo, logr)

	exportStore, err := storage.NewLocalStorage(cfg.Export.Dir)
	if err != nil {
		return fmt.Errorf("export storage: %w", err)
	}
	exportSvc := service.NewExportService(attendanceSvc, gradeSvc, assessmentSvc, exportStore,
		storage.NewSigner(cfg.Export.SigningSecret, cfg.Export.ResultTTL),
		service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Export.ResultTTL}, logr)
	exportWorker := service.NewExportWorker(exportJobRepo, exportSvc, metricsSvc, logr)
	exportQueue := jobs.NewQueue("exports", exportWorker.Handle, jobs.Config{
		Workers:     cfg.Export.Workers,
		MaxRetries:  cfg.Export.MaxRetries,
		RetryDelay:  cfg.Export.RetryDelay,
		Logger:      logr,
		OnExhausted: exportWorker.Fail,
	})
	exportQueue.Start(ctx)
	defer exportQueue.Stop()

	exportJobSvc := service.NewExportJobService(exportJobRepo, exportQueue, exportSvc, assessmentSvc, validate, service.ExportJobConfig{
		ResultTTL:       cfg.Export.ResultTTL,
		CleanupInterval: cfg.Export.CleanupInterval,
	}, logr)
	exportJobSvc.RecoverPendingJobs(ctx)
	exportJobSvc.StartCleanup(ctx)

	checks := map[string]handler.ReadinessCheck{"postgres": db.PingContext}
	if cacheRepo.Enabled() {
		checks["redis"] = cacheRepo.Ping
	}

	router := server.NewRouter(server.Options{
		Config:  cfg,
		Logger:  logr,
		Auth:    authSvc,
		Metrics: metricsSvc,
	}, server.Handlers{
		Auth:       handler.NewAuthHandler(authSvc),
		Attendance: handler.NewAttendanceHandler(attendanceSvc),
		Gradebook:  handler.NewGradebookHandler(assessmentSvc, gradeSvc),
		Students:   handler.NewStudentHandler(studentSvc),
		Academic:   handler.NewAcademicHandler(academicSvc),
		Exports:    handler.NewExportHandler(exportJobSvc),
		Metrics:    handler.NewMetricsHandler(metricsSvc, checks),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		logr.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logr.Info("server stopped")
	return nil
}
