package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/smk-lppmri/portal-api/internal/handler"
	"github.com/smk-lppmri/portal-api/internal/middleware"
	"github.com/smk-lppmri/portal-api/internal/models"
	"github.com/smk-lppmri/portal-api/internal/repository"
	"github.com/smk-lppmri/portal-api/internal/service"
	"github.com/smk-lppmri/portal-api/internal/tutor"
	"github.com/smk-lppmri/portal-api/internal/webauthn"
	"github.com/smk-lppmri/portal-api/pkg/cache"
	"github.com/smk-lppmri/portal-api/pkg/config"
	"github.com/smk-lppmri/portal-api/pkg/database"
	"github.com/smk-lppmri/portal-api/pkg/logger"
	corsmiddleware "github.com/smk-lppmri/portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/smk-lppmri/portal-api/pkg/middleware/requestid"
	"github.com/smk-lppmri/portal-api/pkg/storage"
)

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, closeMongo, err := database.NewMongo(cfg.Mongo)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect mongo", "error", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := closeMongo(shutdownCtx); err != nil {
			logr.Sugar().Warnw("mongo disconnect failed", "error", err)
		}
	}()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	identityRepo := repository.NewIdentityRepository(db)
	if err := identityRepo.EnsureIndexes(ctx); err != nil {
		logr.Sugar().Fatalw("failed to ensure indexes", "error", err)
	}
	classroomRepo := repository.NewClassroomRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	examRepo := repository.NewExamRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	challengeRepo := repository.NewChallengeRepository(redisClient)
	sessionRepo := repository.NewSessionRepository(redisClient)

	validate := validator.New()
	rp := &webauthn.RelyingParty{
		ID:            cfg.RelyingParty.ID,
		Name:          cfg.RelyingParty.Name,
		Origin:        cfg.RelyingParty.Origin,
		PromptTimeout: cfg.RelyingParty.PromptTimeout.Milliseconds(),
	}

	registrationSvc := service.NewRegistrationService(identityRepo, challengeRepo, rp, validate, logr, service.RegistrationConfig{
		ChallengeTTL: cfg.RelyingParty.ChallengeTTL,
	})
	authSvc := service.NewAuthService(identityRepo, challengeRepo, sessionRepo, rp, validate, logr, service.AuthConfig{
		TokenSecret:  cfg.Session.Secret,
		TokenTTL:     cfg.Session.TokenTTL,
		Issuer:       cfg.Session.Issuer,
		ChallengeTTL: cfg.RelyingParty.ChallengeTTL,
	})
	gateSvc := service.NewGate(identityRepo, sessionRepo, authSvc, logr)
	approvalSvc := service.NewApprovalService(identityRepo, sessionRepo, logr)
	directorySvc := service.NewDirectoryService(identityRepo, classroomRepo, departmentRepo, validate, logr)

	materialStore, err := storage.NewLocalStorage(cfg.Storage.UploadDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}
	urlSigner := storage.NewSignedURLSigner(cfg.Session.Secret, cfg.Storage.FileURLTTL)

	// Uploads whose download links have expired are unreachable; sweep them.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := materialStore.CleanupOlderThan(cfg.Storage.FileURLTTL)
				if err != nil {
					logr.Sugar().Warnw("upload sweep failed", "error", err)
					continue
				}
				if len(removed) > 0 {
					logr.Sugar().Infow("expired uploads removed", "count", len(removed))
				}
			}
		}
	}()
	courseSvc := service.NewCourseService(courseRepo, materialStore, urlSigner, validate, logr)
	examSvc := service.NewExamService(examRepo, validate, logr)
	assignmentSvc := service.NewAssignmentService(assignmentRepo, validate, logr)
	tutorSvc := service.NewTutorService(tutor.NewClient(cfg.Tutor), logr)

	var metricsSvc *service.MetricsService
	if cfg.Metrics.Enabled {
		metricsSvc = service.NewMetricsService()
	}

	revocations := service.NewRevocationQueue(sessionRepo, logr)
	revocations.Start(ctx)
	defer revocations.Stop()

	watcher := service.NewSessionWatcher(identityRepo, revocations, logr).WithMetrics(metricsSvc)
	go watcher.Run(ctx)

	authHandler := handler.NewAuthHandler(registrationSvc, authSvc, gateSvc, metricsSvc)
	approvalHandler := handler.NewApprovalHandler(approvalSvc)
	directoryHandler := handler.NewDirectoryHandler(directorySvc, approvalSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	examHandler := handler.NewExamHandler(examSvc)
	assignmentHandler := handler.NewAssignmentHandler(assignmentSvc)
	tutorHandler := handler.NewTutorHandler(tutorSvc)
	fileHandler := handler.NewFileHandler(materialStore, urlSigner)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	if metricsSvc != nil {
		r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/register/begin", authHandler.BeginRegistration)
	auth.POST("/register/finish", authHandler.FinishRegistration)
	auth.POST("/login/begin", authHandler.BeginLogin)
	auth.POST("/login/finish", authHandler.FinishLogin)
	auth.POST("/login/password", authHandler.PasswordLogin)
	auth.POST("/logout", middleware.Gate(gateSvc), authHandler.Logout)
	auth.GET("/me", middleware.Resolve(gateSvc), authHandler.Me)

	admin := api.Group("/admin", middleware.Gate(gateSvc), middleware.RequireRoles(gateSvc, models.RoleAdmin))
	admin.GET("/approvals", approvalHandler.ListPending)
	admin.POST("/approvals/:id/approve", approvalHandler.Approve)
	admin.POST("/approvals/:id/reject", approvalHandler.Reject)
	admin.POST("/users", directoryHandler.CreateUser)
	admin.GET("/users", directoryHandler.ListUsers)
	admin.GET("/users/export", directoryHandler.ExportUsers)
	admin.DELETE("/users/:id", directoryHandler.DeleteUser)
	admin.GET("/classrooms", directoryHandler.ListClassrooms)
	admin.POST("/classrooms", directoryHandler.CreateClassroom)
	admin.DELETE("/classrooms/:id", directoryHandler.DeleteClassroom)
	admin.GET("/departments", directoryHandler.ListDepartments)
	admin.POST("/departments", directoryHandler.CreateDepartment)
	admin.DELETE("/departments/:id", directoryHandler.DeleteDepartment)

	courses := api.Group("/courses", middleware.Gate(gateSvc))
	courses.GET("", courseHandler.ListCourses)
	courses.POST("", courseHandler.CreateCourse)
	courses.GET("/:id/materials", courseHandler.ListMaterials)
	courses.POST("/:id/materials", courseHandler.AddMaterial)
	courses.POST("/:id/materials/upload", courseHandler.UploadMaterial)

	exams := api.Group("/exams", middleware.Gate(gateSvc))
	exams.GET("", examHandler.ListExams)
	exams.POST("", examHandler.CreateExam)
	exams.GET("/:id/submissions", examHandler.ListSubmissions)
	exams.POST("/:id/submissions", examHandler.SubmitExam)

	assignments := api.Group("/assignments", middleware.Gate(gateSvc))
	assignments.GET("", assignmentHandler.ListAssignments)
	assignments.POST("", assignmentHandler.CreateAssignment)
	assignments.GET("/:id/submissions", assignmentHandler.ListSubmissions)
	assignments.POST("/:id/submissions", assignmentHandler.SubmitAssignment)
	assignments.POST("/submissions/:id/grade", assignmentHandler.GradeSubmission)

	api.POST("/tutor/ask", middleware.Gate(gateSvc), tutorHandler.Ask)

	// Download links carry their own signed, expiring token.
	api.GET("/files/:token", fileHandler.Download)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("graceful shutdown failed", "error", err)
	}
}
