package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"imagepress/pkg/cache"
	"imagepress/pkg/codec"
	"imagepress/pkg/pipeline"
)

// result is the serialized form of a finished pipeline run, shared by
// the response writer and the Redis cache.
type result struct {
	Data         []byte   `json:"data"`
	OriginalSize int64    `json:"original_size"`
	FinalSize    int64    `json:"final_size"`
	ElapsedMs    int64    `json:"elapsed_ms"`
	Parameter    string   `json:"parameter"`
	AppliedSteps []string `json:"applied_steps,omitempty"`
	ContentType  string   `json:"content_type"`
}

func (s *Server) handleCompress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, ok := s.readUpload(w, r, s.compressMax)
	if !ok {
		return
	}

	if cached, ok := s.lookupResult(r.Context(), "compress", s.compressBudget.TargetBytes, body); ok {
		s.stats.RecordSuccess(cached.OriginalSize, cached.FinalSize)
		s.writeResult(w, cached)
		return
	}

	res, err := s.compressor.Compress(body, s.compressBudget)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	out := result{
		Data:         res.Data,
		OriginalSize: res.OriginalSize,
		FinalSize:    res.FinalSize,
		ElapsedMs:    res.Elapsed.Milliseconds(),
		Parameter:    res.Parameter,
		ContentType:  "image/jpeg",
	}
	s.storeResult(r.Context(), "compress", s.compressBudget.TargetBytes, body, out)
	s.stats.RecordSuccess(res.OriginalSize, res.FinalSize)
	s.writeResult(w, out)
}

func (s *Server) handleEnhance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, ok := s.readUpload(w, r, s.ocrMax)
	if !ok {
		return
	}

	if cached, ok := s.lookupResult(r.Context(), "enhance", s.ocrBudget.TargetBytes, body); ok {
		s.stats.RecordSuccess(cached.OriginalSize, cached.FinalSize)
		s.writeResult(w, cached)
		return
	}

	res, err := s.enhancer.Enhance(body, s.ocrBudget)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	out := result{
		Data:         res.Data,
		OriginalSize: res.OriginalSize,
		FinalSize:    res.FinalSize,
		ElapsedMs:    res.Elapsed.Milliseconds(),
		Parameter:    res.Parameter,
		AppliedSteps: res.AppliedSteps,
		ContentType:  "image/png",
	}
	s.storeResult(r.Context(), "enhance", s.ocrBudget.TargetBytes, body, out)
	s.stats.RecordSuccess(res.OriginalSize, res.FinalSize)
	s.writeResult(w, out)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.stats.Snapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// readUpload pulls the image bytes out of the request: the "image"
// field of a multipart form, or the raw body otherwise. The body is
// capped at limit bytes before any read.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("image")
		if err != nil {
			s.uploadError(w, r, err)
			return nil, false
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			s.uploadError(w, r, err)
			return nil, false
		}
		return data, true
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		s.uploadError(w, r, err)
		return nil, false
	}
	return data, true
}

func (s *Server) uploadError(w http.ResponseWriter, r *http.Request, err error) {
	s.stats.RecordError()
	s.log.Warn("upload rejected", "path", r.URL.Path, "error", err)

	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		http.Error(w, "upload too large", http.StatusRequestEntityTooLarge)
		return
	}
	http.Error(w, "invalid upload", http.StatusBadRequest)
}

// fail maps pipeline errors to statuses: unreadable input is the
// client's fault, a codec fault mid-ladder is ours. Every failed
// request bumps the error counter exactly once.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.stats.RecordError()
	s.log.Error("request failed", "path", r.URL.Path, "error", err)

	var decodeErr *codec.DecodeError
	switch {
	case errors.Is(err, pipeline.ErrEmptyInput):
		http.Error(w, "empty request body", http.StatusBadRequest)
	case errors.As(err, &decodeErr):
		http.Error(w, "unreadable image", http.StatusBadRequest)
	default:
		http.Error(w, "image processing failed", http.StatusInternalServerError)
	}
}

func (s *Server) writeResult(w http.ResponseWriter, res result) {
	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.Header().Set("X-Original-Size", strconv.FormatInt(res.OriginalSize, 10))
	w.Header().Set("X-Final-Size", strconv.FormatInt(res.FinalSize, 10))
	w.Header().Set("X-Compression", res.Parameter)
	w.Header().Set("X-Elapsed-Ms", strconv.FormatInt(res.ElapsedMs, 10))
	if len(res.AppliedSteps) > 0 {
		w.Header().Set("X-Applied-Steps", strings.Join(res.AppliedSteps, ","))
	}
	w.Write(res.Data)
}

func (s *Server) lookupResult(ctx context.Context, mode string, target int64, payload []byte) (result, bool) {
	if s.cache == nil {
		return result{}, false
	}
	var res result
	if err := s.cache.GetJSON(ctx, s.cache.ResultKey(mode, target, payload), &res); err != nil {
		return result{}, false
	}
	return res, true
}

func (s *Server) storeResult(ctx context.Context, mode string, target int64, payload []byte, res result) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJSON(ctx, s.cache.ResultKey(mode, target, payload), res, cache.ResultTTL); err != nil {
		s.log.Warn("result cache store failed", "error", err)
	}
}
