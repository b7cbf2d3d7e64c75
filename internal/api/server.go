package api

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/david/assembly-tracker/internal/refresh"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Datasets is the cache-backed view of the served datasets.
type Datasets interface {
	Get(ctx context.Context, name, member string) (any, bool, error)
	ForceRefresh(ctx context.Context, name, member string) (any, error)
	Status() []refresh.DatasetStatus
}

// SummaryRetrier regenerates summaries that previously failed.
type SummaryRetrier interface {
	RetryFailed(ctx context.Context) (int, error)
}

type Options struct {
	Datasets      Datasets
	Retrier       SummaryRetrier
	DefaultMember string
	AdminSecret   string
	CORSOrigins   []string
	// JobTimeout bounds admin background jobs.
	JobTimeout time.Duration
}

type Server struct {
	Echo *echo.Echo

	datasets      Datasets
	retrier       SummaryRetrier
	defaultMember string
	adminSecret   string
	jobTimeout    time.Duration

	jobMu sync.Mutex
	jobs  map[string]*backgroundJob
	// running maps a job kind to the id of its running job.
	running map[string]string
}

func NewServer(opts Options) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, "X-Admin-Secret"},
	}))

	secret, err := resolveAdminSecret(opts.AdminSecret)
	if err != nil {
		return nil, err
	}

	jobTimeout := opts.JobTimeout
	if jobTimeout <= 0 {
		jobTimeout = 30 * time.Minute
	}

	s := &Server{
		Echo:          e,
		datasets:      opts.Datasets,
		retrier:       opts.Retrier,
		defaultMember: opts.DefaultMember,
		adminSecret:   secret,
		jobTimeout:    jobTimeout,
		jobs:          make(map[string]*backgroundJob),
		running:       make(map[string]string),
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.Echo.GET("/", s.handleRoot)
	s.Echo.GET("/status", s.handleStatus)
	s.Echo.GET("/health", s.handleHealth)

	api := s.Echo.Group("/api")
	api.GET("/vote_data", s.handleVoteData)
	api.GET("/bills_combined", s.handleBillsCombined)

	admin := api.Group("/admin")
	admin.Use(s.adminMiddleware)
	admin.POST("/refresh/:dataset", s.handleForceRefresh)
	admin.POST("/retry-summaries", s.handleRetrySummaries)
	admin.GET("/job/:id", s.handleJobStatus)
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}

func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		given := c.Request().Header.Get("X-Admin-Secret")
		if given != "" && subtle.ConstantTimeCompare([]byte(given), []byte(s.adminSecret)) == 1 {
			return next(c)
		}
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized admin access"})
	}
}

// resolveAdminSecret falls back to a random per-process secret so admin
// routes are never open when none is configured.
func resolveAdminSecret(configured string) (string, error) {
	if secret := strings.TrimSpace(configured); secret != "" {
		return secret, nil
	}

	buf := make([]byte, 48)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate admin secret fallback: %w", err)
	}
	log.Print("ADMIN_SECRET is not set; using ephemeral in-memory fallback secret")
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
