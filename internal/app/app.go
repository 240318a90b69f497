package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"skillsnap_backend/internal/config"
	"skillsnap_backend/internal/controller"
	"skillsnap_backend/internal/repository"
	"skillsnap_backend/internal/service"
	"skillsnap_backend/internal/util"
	"skillsnap_backend/pkg/configwatcher"
	"skillsnap_backend/pkg/database"
	"skillsnap_backend/pkg/logger"
	"skillsnap_backend/pkg/monitoring"
	"skillsnap_backend/pkg/security"
	"skillsnap_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	catalog     *repository.CatalogRepository
	submission  *repository.SubmissionRepository
	certificate *repository.CertificateRepository
}

type services struct {
	storage     *service.StorageService
	executor    service.ExecutionClient
	policy      *service.PolicyStore
	grading     *service.GradingService
	certificate *service.CertificateService
	assessment  *service.AssessmentService
}

type controllers struct {
	skill       *controller.SkillController
	assessment  *controller.AssessmentController
	execute     *controller.ExecuteController
	certificate *controller.CertificateController
	health      *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *repositories {
	return &repositories{
		catalog:     repository.NewCatalogRepository(db, repository.NewAssessmentCache(rdb, cfg.Redis.CacheTTL)),
		submission:  repository.NewSubmissionRepository(db),
		certificate: repository.NewCertificateRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.executor = service.NewExecutionClient(cfg)
	s.policy = service.NewPolicyStore(service.PolicyFromConfig(cfg.Grading))
	s.grading = service.NewGradingService(repos.catalog, s.executor, s.policy, cfg.Execution.MaxSourceLength)
	s.certificate = service.NewCertificateService(
		repos.certificate,
		service.NewPDFRenderer(cfg.Certificate.Title),
		s.storage,
		cfg.Certificate.SignedURLTTL,
		cfg.Certificate.RefreshTTL,
	)
	s.assessment = service.NewAssessmentService(
		repos.catalog,
		s.grading,
		repos.submission,
		s.certificate,
		s.policy,
		cfg.Execution.MaxSourceLength,
	)

	// 评分策略支持热更新
	a.RegisterConfigCallback(func(newCfg *config.Config) {
		p := service.PolicyFromConfig(newCfg.Grading)
		s.policy.Store(p)
		logger.Log.Info("Grading policy reloaded",
			zap.Int("pass_threshold", p.PassThreshold),
			zap.Int("default_language_id", p.DefaultLanguageID),
			zap.Bool("compare_output", p.CompareOutput))
	})

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB) *controllers {
	return &controllers{
		skill:       controller.NewSkillController(s.assessment),
		assessment:  controller.NewAssessmentController(s.assessment),
		execute:     controller.NewExecuteController(s.grading),
		certificate: controller.NewCertificateController(s.certificate),
		health:      controller.NewHealthController(db, s.executor),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config) *App {
	if err := logger.InitLogger(cfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode == gin.DebugMode)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// release 模式下默认不迁移，除非指定 -migrate
	if cfg.ForceMigrate || cfg.Server.Mode != gin.ReleaseMode {
		if err := database.Migrate(db); err != nil {
			logger.Log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}
	if cfg.Seed {
		if err := database.Seed(db); err != nil {
			logger.Log.Fatal("Failed to seed database", zap.Error(err))
		}
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		// 缓存不可用时直接读库
		logger.Log.Warn("Redis unavailable, assessment cache disabled", zap.Error(err))
		rdb = nil
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	if cfg.MigrateOnly {
		return app
	}

	repos := app.initRepositories(db, rdb, cfg)
	services := app.initServices(repos, cfg)
	app.services = services
	controllers := app.initControllers(services, db)

	// 监控初始化
	monitoring.Init()

	gin.SetMode(cfg.Server.Mode)
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(cfg.Tracing)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	logger.Log.Info("Execution backend selected", zap.String("provider", services.executor.Provider()))
	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// 配置文件热更新
	go func() {
		w := configwatcher.New(filepath.Join(config.DefaultDir, config.FileName))
		err := w.Run(ctx, func(newCfg *config.Config) {
			for _, cb := range a.configCallbacks {
				cb(newCfg)
			}
		})
		if err != nil {
			logger.Log.Warn("Config watcher disabled", zap.Error(err))
		}
	}()

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}

	log.Println("Server exiting")
}
