package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/reelcast/reelcast/internal/config"
	"github.com/reelcast/reelcast/internal/metrics"
	"github.com/reelcast/reelcast/internal/service"
	"github.com/reelcast/reelcast/internal/service/contentgen"
	"github.com/reelcast/reelcast/internal/service/media"
	"github.com/reelcast/reelcast/internal/service/news"
	"github.com/reelcast/reelcast/internal/service/publisher"
	"github.com/reelcast/reelcast/pkg/retry"
)

type Server struct {
	Config *config.Config
	DB     *gorm.DB
	Router *gin.Engine
	Logger *zap.Logger
	Server *http.Server

	// Services
	Store     *service.RecordStore
	Pipeline  *service.Pipeline
	Scheduler *service.Scheduler
	Auth      *service.AuthService
	Metrics   *metrics.Collector
}

func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	// Set gin mode
	gin.SetMode(cfg.Server.Mode)

	// Initialize database
	db, err := service.NewDatabase(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	store := service.NewRecordStore(db, logger)
	collector := metrics.NewCollector()

	pipeline, err := buildPipeline(cfg, store, collector, logger)
	if err != nil {
		return nil, err
	}

	scheduler, err := service.NewScheduler(&cfg.Schedule, pipeline, store, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize scheduler: %w", err)
	}

	// Create router
	router := gin.New()

	srv := &Server{
		Config:    cfg,
		DB:        db,
		Router:    router,
		Logger:    logger,
		Store:     store,
		Pipeline:  pipeline,
		Scheduler: scheduler,
		Auth:      service.NewAuthService(logger, cfg.Server.TOTPSecret),
		Metrics:   collector,
	}

	srv.setupMiddleware()
	srv.setupRoutes()

	return srv, nil
}

func buildPipeline(cfg *config.Config, store *service.RecordStore, collector *metrics.Collector, logger *zap.Logger) (*service.Pipeline, error) {
	var providers []news.Provider
	if cfg.News.NewsAPIKey != "" {
		providers = append(providers, news.NewNewsAPIProvider(cfg.News.NewsAPIKey))
	}
	if cfg.News.GNewsAPIKey != "" {
		providers = append(providers, news.NewGNewsProvider(cfg.News.GNewsAPIKey))
	}
	if len(cfg.News.RSSFeeds) > 0 {
		providers = append(providers, news.NewRSSProvider(cfg.News.RSSFeeds))
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("no news providers configured")
	}
	source := news.NewAggregate(providers, cfg.News.Query,
		time.Duration(cfg.News.MaxAgeHours)*time.Hour, logger)

	var generator contentgen.Generator
	if cfg.LLM.APIKey != "" {
		generator = contentgen.NewOpenAIGenerator(contentgen.OpenAIOptions{
			BaseURL:     cfg.LLM.BaseURL,
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			Timeout:     cfg.LLM.RequestTimeout,
		}, logger)
	} else {
		logger.Warn("no LLM api key configured, using template content generator")
		generator = contentgen.NewTemplateGenerator()
	}

	renderer := media.NewFFmpegRenderer(media.FFmpegOptions{
		FFmpegPath:     cfg.Media.FFmpegPath,
		FFprobePath:    cfg.Media.FFprobePath,
		OutputDir:      cfg.Media.OutputDir,
		TargetDuration: cfg.Media.TargetDuration,
		Width:          cfg.Media.Width,
		Height:         cfg.Media.Height,
		FPS:            cfg.Media.FPS,
	}, logger)

	manager := publisher.NewManager(logger)
	if cfg.Publishers.YouTube.Enabled {
		yt := cfg.Publishers.YouTube
		if err := manager.Register(publisher.NewYouTubePublisher(yt.ClientID, yt.ClientSecret, yt.RefreshToken, logger)); err != nil {
			return nil, err
		}
	}
	if cfg.Publishers.Instagram.Enabled {
		ig := cfg.Publishers.Instagram
		if err := manager.Register(publisher.NewInstagramPublisher(ig.AccessToken, ig.BusinessAccountID, logger)); err != nil {
			return nil, err
		}
	}
	if cfg.Publishers.Facebook.Enabled {
		fb := cfg.Publishers.Facebook
		if err := manager.Register(publisher.NewFacebookPublisher(fb.AccessToken, fb.PageID, logger)); err != nil {
			return nil, err
		}
	}

	rotator := service.NewRotator(map[string]string{
		service.PoolBackgrounds: cfg.Assets.BackgroundsDir,
		service.PoolAudio:       cfg.Assets.AudioDir,
	}, cfg.Assets.RecentRingSize, store, logger)

	stageRetry := retry.Policy{
		MaxAttempts:    cfg.Retry.MaxAttempts,
		InitialBackoff: cfg.Retry.Initial,
		MaxBackoff:     cfg.Retry.Max,
		BackoffFactor:  2.0,
		Jitter:         true,
	}
	finalizeRetry := stageRetry
	finalizeRetry.MaxAttempts = cfg.Retry.FinalizeAttempts

	return service.NewPipeline(
		source,
		generator,
		renderer,
		manager.Enabled(),
		rotator,
		store,
		collector,
		service.PipelineOptions{
			FetchLimit:     cfg.News.FetchLimit,
			BulletinSize:   cfg.Schedule.BulletinSize,
			TargetDuration: cfg.Media.TargetDuration,
			StageRetry:     stageRetry,
			PublishRetry:   stageRetry,
			FinalizeRetry:  finalizeRetry,
		},
		logger,
	), nil
}

func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.Router.Use(gin.Recovery())

	// Logger middleware
	s.Router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))
}

func (s *Server) setupRoutes() {
	// Health check
	s.Router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	})

	// Prometheus metrics
	s.Router.GET("/metrics", gin.WrapH(s.Metrics.Handler()))

	// API routes
	api := s.Router.Group("/api/v1")
	{
		api.POST("/runs", s.Auth.Middleware(), s.handleTriggerRun)
		api.GET("/posts", s.handleListPosts)
		api.GET("/posts/:id/attempts", s.handleListAttempts)
	}
}

func (s *Server) handleTriggerRun(c *gin.Context) {
	var body struct {
		Slot string `json:"slot"`
	}
	_ = c.ShouldBindJSON(&body)
	if body.Slot == "" {
		body.Slot = "manual"
	}

	result, ran := s.Scheduler.TriggerNow(c.Request.Context(), body.Slot)
	if !ran {
		c.JSON(http.StatusConflict, gin.H{"error": "a run is already in progress"})
		return
	}

	resp := gin.H{
		"slot":    result.Slot,
		"outcome": result.Outcome,
		"post_id": result.PostID,
	}
	if result.Err != nil {
		resp["error"] = result.Err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListPosts(c *gin.Context) {
	posts, err := s.Store.ListPosts(c.Request.Context(), 50)
	if err != nil {
		s.Logger.Error("Failed to list posts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list posts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

func (s *Server) handleListAttempts(c *gin.Context) {
	attempts, err := s.Store.ListAttempts(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.Logger.Error("Failed to list attempts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list attempts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"attempts": attempts})
}

func (s *Server) Start(ctx context.Context) error {
	// Start scheduler
	s.Scheduler.Start(ctx)

	addr := fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port)

	s.Server = &http.Server{
		Addr:    addr,
		Handler: s.Router,
	}

	s.Logger.Info("Starting HTTP server", zap.String("addr", addr))

	return s.Server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	// Stop scheduler first
	s.Scheduler.Stop()

	if s.Server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return s.Server.Shutdown(shutdownCtx)
}
