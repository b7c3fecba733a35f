package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"tonotes/config"
	"tonotes/embeddings"
	"tonotes/handler"
	"tonotes/middleware"
	"tonotes/observability"
	"tonotes/repository"
	"tonotes/search"
	"tonotes/services"
	"tonotes/usecase"
	"tonotes/utils"
)

// app holds the wired services the router needs.
type app struct {
	cfg           *config.Config
	logger        *slog.Logger
	notesService  *usecase.NotesService
	searchService *usecase.SearchService
}

func newApp(cfg *config.Config, logger *slog.Logger, store repository.NoteStore, engine *search.Engine) *app {
	notesService := usecase.NewNotesService(store, services.NewSnapshotCodec(cfg.ShareSigningKey),
		usecase.WithIndexer(engine),
		usecase.WithLogger(logger))
	return &app{
		cfg:           cfg,
		logger:        logger,
		notesService:  notesService,
		searchService: usecase.NewSearchService(engine, store, logger),
	}
}

func setupRouter(a *app) *gin.Engine {
	utils.InitValidator()

	router := gin.New()
	router.Use(middleware.OTelMiddleware(a.cfg.Telemetry.ServiceName))
	router.Use(middleware.RequestTracingMiddleware())
	router.Use(middleware.AccessLogMiddleware(a.logger))
	router.Use(middleware.EnhancedRecoveryMiddleware(a.logger))
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.CORSMiddleware(a.cfg.AllowedOrigins))

	router.GET("/health", handler.NewHealthHandler(a.notesService, a.searchService).GetHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.Use(middleware.RequestSizeLimiter(a.cfg.MaxBodyBytes))
	api.Use(middleware.RequireJSONBody())

	// Share links are opened by anyone holding the token.
	share := api.Group("/share")
	share.Use(middleware.CacheControlMiddleware("86400"))
	{
		share.GET("/:token", func(c *gin.Context) {
			handler.ResolveShareHandler(c, a.notesService)
		})
	}

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(a.cfg.AuthJWTSecret))
	protected.Use(middleware.NoStoreMiddleware())
	{
		notes := protected.Group("/notes")
		{
			notes.GET("", func(c *gin.Context) {
				handler.ListNotesHandler(c, a.notesService)
			})
			notes.POST("", func(c *gin.Context) {
				handler.CreateNoteHandler(c, a.notesService)
			})
			notes.GET("/:id", func(c *gin.Context) {
				handler.GetNoteHandler(c, a.notesService)
			})
			notes.PUT("/:id", func(c *gin.Context) {
				handler.UpdateNoteHandler(c, a.notesService)
			})
			notes.DELETE("/:id", func(c *gin.Context) {
				handler.DeleteNoteHandler(c, a.notesService)
			})
			notes.POST("/:id/share", func(c *gin.Context) {
				handler.ShareNoteHandler(c, a.notesService, a.cfg.ShareBaseURL)
			})

			limiter := middleware.NewRateLimiter(a.cfg.Search.RateLimit, a.cfg.Search.RateBurst)
			notes.POST("/search", middleware.RateLimitMiddleware(limiter), func(c *gin.Context) {
				handler.SearchNotesHandler(c, a.searchService)
			})
		}

		rag := protected.Group("/rag")
		{
			rag.GET("/status", func(c *gin.Context) {
				handler.SearchStatusHandler(c, a.searchService)
			})
			rag.POST("/refresh", func(c *gin.Context) {
				handler.RefreshIndexHandler(c, a.searchService)
			})
			rag.POST("/evaluate", func(c *gin.Context) {
				handler.EvaluateSearchHandler(c, a.searchService)
			})
		}
	}

	return router
}

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer shutdownTracer(context.Background())

	store, err := repository.Open(ctx, cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("open note store: %w", err)
	}
	defer store.Close(context.Background())

	embedder, err := embeddings.NewEmbedder(cfg.Search.EmbeddingsProvider, cfg.Search.EmbeddingsURL,
		cfg.Search.EmbeddingsModel, cfg.Search.EmbeddingsAPIKey)
	if err != nil {
		return fmt.Errorf("configure embeddings: %w", err)
	}
	if embedder != nil {
		if err := embedder.Health(ctx); err != nil {
			logger.Warn("embedding service not healthy, search will use keywords until it recovers", "error", err)
		}
	}

	engine := search.NewEngine(search.Options{
		IndexPath:     cfg.Search.IndexPath,
		ChunkSize:     cfg.Search.ChunkSize,
		ChunkOverlap:  cfg.Search.ChunkOverlap,
		KeywordWeight: cfg.Search.KeywordWeight,
		Embedder:      embedder,
		Logger:        logger,
	})
	defer engine.Close()

	a := newApp(cfg, logger, store, engine)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           setupRouter(a),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Failures leave the search status at "error"; the server still starts.
		if _, err := a.searchService.Refresh(gctx); err != nil {
			logger.Warn("initial search index build failed", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("Server starting", "addr", srv.Addr, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
