// Package server exposes scraping and export downloads over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"lotscrape/internal/crawler"
	"lotscrape/internal/types"
	"lotscrape/internal/writer"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
)

// Scraper runs an aggregated scrape
type Scraper interface {
	Run(ctx context.Context, req types.ScrapeRequest) (*crawler.Result, error)
}

// Exporter stores records and finds stored exports
type Exporter interface {
	Write(rec types.Record) (writer.Artifact, error)
	Path(name string) (string, error)
}

// Server handles the HTTP API
type Server struct {
	scraper  Scraper
	exporter Exporter
}

// New creates a Server
func New(scraper Scraper, exporter Exporter) *Server {
	return &Server{scraper: scraper, exporter: exporter}
}

// Router builds the gin engine with every route registered
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.POST("/scrape", s.HandleScrape)
	router.GET("/download/:name", s.HandleDownload)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests for up to shutdownTimeout
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("Listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down", "timeout", shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// errorResponse creates the failure body shared by the scrape endpoint
func errorResponse(err error) gin.H {
	return gin.H{"success": false, "error": err.Error()}
}

// HandleScrape handles POST /scrape
func (s *Server) HandleScrape(c *gin.Context) {
	var req types.ScrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var verr *types.ValidationError
		if !errors.As(err, &verr) {
			err = fmt.Errorf("invalid request body: %w", err)
		}
		c.JSON(http.StatusBadRequest, errorResponse(err))
		return
	}

	res, err := s.scraper.Run(c.Request.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, types.ErrInvalidRequest) {
			status = http.StatusBadRequest
		}
		log.Error("Scrape failed", "status", status, "error", err)
		c.JSON(status, errorResponse(err))
		return
	}

	artifact, err := s.exporter.Write(res.Record)
	if err != nil {
		log.Error("Export failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse(err))
		return
	}

	failed := make(map[string]string, len(res.Failures))
	for site, ferr := range res.Failures {
		failed[site] = ferr.Error()
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"data":           res.Record,
		"download_url":   "/download/" + artifact.Name,
		"failed_sources": failed,
	})
}

// HandleDownload handles GET /download/:name
func (s *Server) HandleDownload(c *gin.Context) {
	name := c.Param("name")
	path, err := s.exporter.Path(name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}
	c.FileAttachment(path, name)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("Request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"took", time.Since(start).Round(time.Millisecond),
		)
	}
}
