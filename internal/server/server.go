// Package server exposes the menu pipeline over HTTP with gin.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/dinecoach/internal/app"
	"github.com/hyperifyio/dinecoach/internal/menu"
	"github.com/hyperifyio/dinecoach/internal/score"
)

const (
	// MaxPDFBytes caps an uploaded menu document.
	MaxPDFBytes = 10 << 20
	// maxBodyBytes leaves room for multipart framing around the PDF.
	maxBodyBytes     = MaxPDFBytes + 1<<20
	defaultTimeout   = 120 * time.Second
	foodFactsResults = 6
)

// Service is the pipeline the handlers call. *app.App implements it.
type Service interface {
	Rank(cands []menu.Candidate, p score.Preferences) (app.Analysis, error)
	AnalyzeURL(ctx context.Context, rawURL string, p score.Preferences) (app.Analysis, error)
	AnalyzePDF(ctx context.Context, data []byte, useOCR bool, p score.Preferences) (app.Analysis, error)
	Nearby(ctx context.Context, req app.NearbyRequest) (app.NearbyResult, error)
	FoodFacts(ctx context.Context, query string, pageSize int) (app.FoodFactsResult, error)
}

var _ Service = (*app.App)(nil)

// Options configures the router.
type Options struct {
	// Defaults fill preference fields a request leaves out.
	Defaults score.Preferences
	// RequestTimeout bounds each request; zero means two minutes.
	RequestTimeout time.Duration
	// AllowOrigins lists CORS origins; empty allows any.
	AllowOrigins []string
	Debug        bool
}

type handlers struct {
	svc      Service
	defaults score.Preferences
}

// NewRouter builds the gin engine with logging, request ids, CORS and body
// limits in front of the routes.
func NewRouter(svc Service, opt Options) *gin.Engine {
	if !opt.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	if opt.RequestTimeout <= 0 {
		opt.RequestTimeout = defaultTimeout
	}
	if opt.Defaults.CalorieTarget <= 0 {
		opt.Defaults = score.DefaultPreferences()
	}
	origins := opt.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := gin.New()
	r.Use(recovery())
	r.Use(requestid.New(requestid.WithGenerator(func() string { return uuid.New().String() })))
	r.Use(requestLogger())
	r.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}))
	r.Use(bodySizeLimit(maxBodyBytes))
	r.Use(timeout(opt.RequestTimeout))

	h := &handlers{svc: svc, defaults: opt.Defaults}
	r.GET("/_ping", h.ping)
	r.POST("/rank", h.rank)
	r.POST("/analyze-url", h.analyzeURL)
	r.POST("/analyze-pdf", h.analyzePDF)
	r.GET("/nearby", h.nearbyQuery)
	r.POST("/nearby-by-zip", h.nearbyJSON)
	r.GET("/openfoodfacts", h.foodFacts)
	r.POST("/card", h.card)
	return r
}

// ListenAndServe serves h on addr until ctx is cancelled, then shuts down
// gracefully.
func ListenAndServe(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      defaultTimeout + 10*time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info().Msg("shutting down")
	return srv.Shutdown(shutdownCtx)
}
