package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"LectureCrawler/internal/app"
	"LectureCrawler/internal/models"
	"LectureCrawler/pkg/config"

	"github.com/gin-gonic/gin"
)

const (
	defaultLimit = 20
	maxLimit     = 100

	defaultShutdownTimeout = 30 * time.Second
)

// Handler runs a crawl on demand.
type Handler interface {
	Handle(ctx context.Context, event any) (app.Response, error)
}

// LectureReader serves the stored lectures.
type LectureReader interface {
	GetLectures(ctx context.Context, filters models.LectureFilters) ([]models.Lecture, error)
	CountLectures(ctx context.Context, filters models.LectureFilters) (int, error)
}

// NewRouter creates a configured Gin engine with all routes and middleware.
func NewRouter(h Handler, repo LectureReader, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")
	v1.GET("/health", healthHandler(startTime))
	v1.POST("/crawl", crawlHandler(h))
	v1.GET("/lectures", lecturesHandler(repo, cfg.Crawler.Domain))

	return r
}

// Start serves the router until ctx ends, then drains in-flight requests.
// Request contexts derive from ctx, so a running crawl sees the shutdown,
// stops fetching and stores what it collected before its request returns.
func Start(ctx context.Context, h Handler, repo LectureReader, cfg *config.Config) error {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return serve(ctx, newHTTPServer(ctx, h, repo, cfg), ln, cfg.Server.ShutdownTimeout)
}

func newHTTPServer(ctx context.Context, h Handler, repo LectureReader, cfg *config.Config) *http.Server {
	return &http.Server{
		Handler:     NewRouter(h, repo, cfg, time.Now()),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
}

func serve(ctx context.Context, srv *http.Server, ln net.Listener, shutdownTimeout time.Duration) error {
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server forced shutdown: %w", err)
	}
	slog.Info("HTTP server drained gracefully")
	return nil
}

func healthHandler(startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"uptime": time.Since(startTime).Round(time.Second).String(),
		})
	}
}

// crawlHandler runs one crawl synchronously and returns its Response.
func crawlHandler(h Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := h.Handle(c.Request.Context(), nil)
		if errors.Is(err, app.ErrRunInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		// Persistence errors are already logged; the run itself completed.
		c.JSON(resp.StatusCode, resp)
	}
}

func lecturesHandler(repo LectureReader, domain string) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.Query("page"))
		if page < 1 {
			page = 1
		}
		limit, _ := strconv.Atoi(c.Query("limit"))
		if limit < 1 {
			limit = defaultLimit
		}
		if limit > maxLimit {
			limit = maxLimit
		}

		filters := models.LectureFilters{
			SourceName: domain,
			Limit:      limit,
			Offset:     (page - 1) * limit,
		}

		total, err := repo.CountLectures(c.Request.Context(), filters)
		if err != nil {
			slog.Error("failed to count lectures", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count lectures"})
			return
		}

		lectures, err := repo.GetLectures(c.Request.Context(), filters)
		if err != nil {
			slog.Error("failed to get lectures", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get lectures"})
			return
		}

		c.JSON(http.StatusOK, models.LecturePage{
			Data: lectures,
			Pagination: models.Pagination{
				TotalPages:  int(math.Ceil(float64(total) / float64(limit))),
				CurrentPage: page,
				Total:       total,
			},
		})
	}
}
