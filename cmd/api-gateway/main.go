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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/edumart/edumart-api/api/swagger"
	"github.com/edumart/edumart-api/internal/handler"
	"github.com/edumart/edumart-api/internal/middleware"
	"github.com/edumart/edumart-api/internal/models"
	"github.com/edumart/edumart-api/internal/repository"
	"github.com/edumart/edumart-api/internal/service"
	"github.com/edumart/edumart-api/pkg/cache"
	"github.com/edumart/edumart-api/pkg/config"
	"github.com/edumart/edumart-api/pkg/database"
	"github.com/edumart/edumart-api/pkg/jobs"
	"github.com/edumart/edumart-api/pkg/logger"
	corsmiddleware "github.com/edumart/edumart-api/pkg/middleware/cors"
	reqidmiddleware "github.com/edumart/edumart-api/pkg/middleware/requestid"
	"github.com/edumart/edumart-api/pkg/storage"
)

// @title EduMart API
// @version 1.0.0
// @description Online course marketplace: catalog, checkout and instructor publishing
// @BasePath /api/v1
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, catalog cache disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	curriculumRepo := repository.NewCurriculumRepository(db)
	versionRepo := repository.NewCourseVersionRepository(db)
	moderationRepo := repository.NewModerationRepository(db)
	instructorReqRepo := repository.NewInstructorRequestRepository(db)
	cartRepo := repository.NewCartRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	voucherRepo := repository.NewVoucherRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Shared infrastructure services.
	metricsService := service.NewMetricsService()
	cacheService := service.NewCacheService(cacheRepo, metricsService, cfg.Catalog.CacheTTL, logr, cfg.Catalog.CacheEnabled && redisClient != nil)
	notificationService := service.NewNotificationService(notificationRepo, logr, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	})

	// Domain services.
	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "edumart-api",
	})
	userService := service.NewUserService(userRepo, validate, logr)
	catalogService := service.NewCatalogService(courseRepo, categoryRepo, curriculumRepo, cacheService, logr)
	courseService := service.NewCourseService(courseRepo, categoryRepo, curriculumRepo, moderationRepo, versionRepo, validate, logr)
	moderationService := service.NewModerationService(
		moderationRepo,
		versionRepo,
		courseRepo,
		curriculumRepo,
		userRepo,
		logr,
		service.WithModerationNotifier(notificationService),
		service.WithModerationCacheInvalidator(cacheService),
	)
	instructorReqService := service.NewInstructorRequestService(instructorReqRepo, userRepo, userRepo, notificationService, validate, logr)
	cartService := service.NewCartService(cartRepo, courseRepo, orderRepo, logr)
	orderService := service.NewOrderService(orderRepo, cartRepo, voucherRepo, courseRepo, userRepo, notificationService, logr)
	reviewService := service.NewReviewService(reviewRepo, courseRepo, orderRepo, cacheService, validate, logr)
	voucherService := service.NewVoucherService(voucherRepo, userRepo, validate, logr)
	exportService := service.NewExportService(orderRepo, logr)

	mediaStore, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare upload storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)
	mediaService := service.NewMediaService(curriculumRepo, courseRepo, orderRepo, signer, mediaStore, logr)

	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	notificationService.Start(dispatchCtx)

	// Handlers.
	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	catalogHandler := handler.NewCatalogHandler(catalogService)
	courseHandler := handler.NewCourseHandler(courseService)
	moderationHandler := handler.NewModerationHandler(moderationService)
	instructorReqHandler := handler.NewInstructorRequestHandler(instructorReqService)
	cartHandler := handler.NewCartHandler(cartService)
	orderHandler := handler.NewOrderHandler(orderService)
	reviewHandler := handler.NewReviewHandler(reviewService)
	voucherHandler := handler.NewVoucherHandler(voucherService)
	notificationHandler := handler.NewNotificationHandler(notificationService)
	exportHandler := handler.NewExportHandler(exportService)
	mediaHandler := handler.NewMediaHandler(mediaService, cfg.Uploads.MaxFileSizeBytes)
	readyChecks := []handler.ReadyCheck{{Name: "postgres", Probe: db.PingContext}}
	if redisClient != nil {
		readyChecks = append(readyChecks, handler.ReadyCheck{Name: "redis", Probe: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}
	metricsHandler := handler.NewMetricsHandler(metricsService, readyChecks...)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	// Public surface.
	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authService), authHandler.ChangePassword)
	}

	catalog := api.Group("/catalog")
	catalog.Use(middleware.OptionalJWT(authService))
	{
		catalog.GET("/courses", catalogHandler.ListCourses)
		catalog.GET("/courses/:id", catalogHandler.GetCourse)
		catalog.GET("/courses/:id/reviews", reviewHandler.List)
		catalog.GET("/categories", catalogHandler.ListCategories)
	}

	// Any authenticated account.
	authed := api.Group("")
	authed.Use(middleware.JWT(authService))
	{
		authed.GET("/users/me", userHandler.Me)
		authed.PATCH("/users/me", userHandler.UpdateProfile)
		authed.GET("/users/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), userHandler.Get)

		authed.GET("/cart", cartHandler.Get)
		authed.POST("/cart/items", cartHandler.AddItem)
		authed.DELETE("/cart/items/:id", cartHandler.RemoveItem)

		authed.POST("/orders/checkout", orderHandler.Checkout)
		authed.GET("/orders", orderHandler.List)
		authed.GET("/orders/:id", orderHandler.Get)
		authed.GET("/orders/:id/invoice", orderHandler.Invoice)
		authed.GET("/library", orderHandler.Library)
		authed.GET("/library/lectures/:id/stream", mediaHandler.LectureStream)

		authed.POST("/courses/:id/reviews", reviewHandler.Create)

		authed.GET("/notifications", notificationHandler.List)
		authed.POST("/notifications/:id/read", notificationHandler.MarkRead)
		authed.POST("/notifications/read-all", notificationHandler.MarkAllRead)

		authed.GET("/vouchers/:code/validate", voucherHandler.Preview)

		authed.POST("/instructor-requests", instructorReqHandler.Apply)
		authed.GET("/instructor-requests/mine", instructorReqHandler.Mine)
	}

	// Instructor authoring.
	instructor := api.Group("/instructor")
	instructor.Use(middleware.JWT(authService), middleware.RequireRoles(models.RoleInstructor, models.RoleAdmin))
	{
		instructor.GET("/courses", courseHandler.ListMine)
		instructor.POST("/courses", courseHandler.Create)
		instructor.GET("/courses/:id", courseHandler.Get)
		instructor.PATCH("/courses/:id", courseHandler.Update)
		instructor.DELETE("/courses/:id", courseHandler.Delete)
		instructor.GET("/courses/:id/versions", courseHandler.ListVersions)
		instructor.GET("/courses/:id/diff", courseHandler.Diff)
		instructor.POST("/courses/:id/submit", moderationHandler.Submit)
		instructor.POST("/courses/:id/cover", mediaHandler.UploadCover)

		instructor.POST("/courses/:id/chapters", courseHandler.AddChapter)
		instructor.PATCH("/chapters/:id", courseHandler.UpdateChapter)
		instructor.DELETE("/chapters/:id", courseHandler.DeleteChapter)
		instructor.POST("/chapters/:id/lectures", courseHandler.AddLecture)
		instructor.PATCH("/lectures/:id", courseHandler.UpdateLecture)
		instructor.DELETE("/lectures/:id", courseHandler.DeleteLecture)
	}

	// Review workflow. Instructors can list and inspect their own requests.
	moderation := api.Group("/moderation")
	moderation.Use(middleware.JWT(authService))
	{
		moderation.GET("/requests", moderationHandler.List)
		moderation.GET("/requests/:id", moderationHandler.Get)

		reviewers := moderation.Group("")
		reviewers.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleModerator))
		{
			reviewers.POST("/requests/:id/decision", moderationHandler.Decide)
			reviewers.POST("/courses/:id/hide", moderationHandler.Hide)
		}
	}

	// Administration.
	admin := api.Group("/admin")
	admin.Use(middleware.JWT(authService), middleware.RequireRoles(models.RoleAdmin))
	{
		admin.GET("/users", userHandler.List)
		admin.PATCH("/users/:id", userHandler.AdminUpdate)
		admin.DELETE("/users/:id", middleware.Audit(userRepo, models.AuditActionUserUpdate, "users"), userHandler.Deactivate)

		admin.GET("/instructor-requests", instructorReqHandler.List)
		admin.POST("/instructor-requests/:id/decision", instructorReqHandler.Decide)

		admin.POST("/categories", catalogHandler.CreateCategory)

		admin.GET("/vouchers", voucherHandler.List)
		admin.POST("/vouchers", voucherHandler.Create)
		admin.PATCH("/vouchers/:code", voucherHandler.Update)

		if cfg.Exports.Enabled {
			admin.GET("/exports/sales", middleware.Audit(userRepo, models.AuditActionExport, "orders"), exportHandler.SalesCSV)
		}
		admin.GET("/metrics", metricsHandler.Snapshot)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}

	stopDispatch()
	notificationService.Stop()
	if redisClient != nil {
		_ = cacheRepo.Close()
	}
}
