// Package server is the HTTP boundary: routing, upload intake, header
// formatting, CORS and request logging. All image work happens in
// pkg/pipeline; this layer maps its errors to statuses and keeps the
// counters.
package server

import (
	"log/slog"
	"net/http"

	"imagepress/pkg/cache"
	"imagepress/pkg/config"
	"imagepress/pkg/pipeline"
	"imagepress/pkg/stats"
)

type Server struct {
	log        *slog.Logger
	stats      *stats.Registry
	compressor *pipeline.Compressor
	enhancer   *pipeline.Enhancer

	// cache is optional; nil disables result caching.
	cache *cache.Cache

	compressBudget pipeline.Budget
	ocrBudget      pipeline.Budget
	compressMax    int64
	ocrMax         int64
}

func New(cfg *config.Config, log *slog.Logger, registry *stats.Registry, cd pipeline.Codec, resultCache *cache.Cache) *Server {
	return &Server{
		log:            log,
		stats:          registry,
		compressor:     pipeline.NewCompressor(cd),
		enhancer:       pipeline.NewEnhancer(cd),
		cache:          resultCache,
		compressBudget: cfg.CompressionBudget(),
		ocrBudget:      cfg.OCRBudget(),
		compressMax:    cfg.CompressionMaxUpload(),
		ocrMax:         cfg.OCRMaxUpload(),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/compress", s.handleCompress)
	mux.HandleFunc("/enhance", s.handleEnhance)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/health", s.handleHealth)
	return s.withLogging(s.withCORS(mux))
}
