package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/shashin/internal/ingest"
	"github.com/hyperjump/shashin/internal/models"
	"github.com/hyperjump/shashin/internal/search"
	"github.com/hyperjump/shashin/internal/storage"
	"github.com/hyperjump/shashin/internal/vector"
)

// errBadRequest marks malformed request parameters.
var errBadRequest = errors.New("bad request")

func (s *Server) handleSearchGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := models.SearchQuery{Query: q.Get("q")}
	var err error
	if query.TopK, err = intParam(r, "top_k"); err != nil {
		s.respondErr(w, err)
		return
	}
	if query.Hybrid, err = boolParam(r, "hybrid"); err != nil {
		s.respondErr(w, err)
		return
	}
	if query.Fuzzy, err = boolParam(r, "fuzzy"); err != nil {
		s.respondErr(w, err)
		return
	}
	s.search(w, r, &query)
}

func (s *Server) handleSearchPost(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.search(w, r, &query)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request, query *models.SearchQuery) {
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("top_k", query.TopK), zap.Bool("hybrid", query.Hybrid))
	response, err := s.engine.Search(r.Context(), query)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	s.logger.Debug("upload request", zap.String("filename", header.Filename), zap.Int("bytes", len(content)))
	photo, duplicate, err := s.ingester.Upload(r.Context(), header.Filename, content)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	resp := models.UploadResponse{
		ID:        photo.ID,
		Filename:  photo.Filename,
		ImageURL:  s.engine.ImageURL(photo.Filename),
		Tags:      photo.Tags,
		Caption:   photo.Caption,
		Duplicate: duplicate,
		Message:   "Photo uploaded successfully",
	}
	status := http.StatusCreated
	if duplicate {
		resp.Message = "Photo already exists"
		status = http.StatusOK
	}
	s.respondJSON(w, status, resp)
}

func (s *Server) handleListPhotos(w http.ResponseWriter, r *http.Request) {
	var q models.ListQuery
	var err error
	if q.Skip, err = intParam(r, "skip"); err != nil {
		s.respondErr(w, err)
		return
	}
	if q.Limit, err = intParam(r, "limit"); err != nil {
		s.respondErr(w, err)
		return
	}
	q.Normalize()
	photos, err := s.storage.ListPhotos(r.Context(), q.Skip, q.Limit)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	for _, p := range photos {
		p.ImageURL = s.engine.ImageURL(p.Filename)
	}
	s.respondJSON(w, http.StatusOK, photos)
}

func (s *Server) handleGetPhoto(w http.ResponseWriter, r *http.Request) {
	id, err := photoID(r)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	photo, err := s.storage.GetPhoto(r.Context(), id)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	photo.ImageURL = s.engine.ImageURL(photo.Filename)
	detail := models.PhotoDetail{Photo: photo}
	withEmbedding, err := boolParam(r, "embedding")
	if err != nil {
		s.respondErr(w, err)
		return
	}
	if withEmbedding {
		emb, err := s.vectors.Vector(r.Context(), id)
		if err != nil && !errors.Is(err, vector.ErrNotFound) {
			s.respondErr(w, err)
			return
		}
		detail.Embedding = emb
	}
	s.respondJSON(w, http.StatusOK, detail)
}

func (s *Server) handleDeletePhoto(w http.ResponseWriter, r *http.Request) {
	id, err := photoID(r)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.logger.Debug("delete photo request", zap.Int64("photo_id", id))
	if err := s.ingester.DeletePhoto(r.Context(), id); err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"id": id, "status": "deleted"})
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	id, err := photoID(r)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	topK, err := intParam(r, "top_k")
	if err != nil {
		s.respondErr(w, err)
		return
	}
	response, err := s.engine.Similar(r.Context(), id, topK)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleAddEmbedding(w http.ResponseWriter, r *http.Request) {
	var input models.EmbeddingInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("add embedding request", zap.Int64("photo_id", input.PhotoID), zap.Int("dimension", len(input.Embedding)))
	if err := s.ingester.AddEmbedding(r.Context(), input.PhotoID, input.Embedding); err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"photo_id": input.PhotoID, "status": "stored"})
}

func (s *Server) handleAlbums(w http.ResponseWriter, r *http.Request) {
	q := models.AlbumQuery{Strategy: r.URL.Query().Get("strategy")}
	var err error
	if q.TopK, err = intParam(r, "top_k"); err != nil {
		s.respondErr(w, err)
		return
	}
	if q.AlbumSize, err = intParam(r, "album_size"); err != nil {
		s.respondErr(w, err)
		return
	}
	if v := r.URL.Query().Get("distance_threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			s.respondErr(w, fmt.Errorf("%w: distance_threshold must be a number", errBadRequest))
			return
		}
		threshold := float32(f)
		q.DistanceThreshold = &threshold
	}
	if v := r.URL.Query().Get("seed"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.respondErr(w, fmt.Errorf("%w: seed must be an integer", errBadRequest))
			return
		}
		q.Seed = &seed
	}
	response, err := s.engine.Albums(r.Context(), &q)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats(r.Context())
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats(r.Context())
	if err != nil {
		s.logger.Error("health check failed", zap.Error(err))
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":  "unhealthy",
			"service": "shashin",
			"error":   err.Error(),
		})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":        "healthy",
		"service":       "shashin",
		"search_engine": stats,
	})
}

func photoID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: photo id must be a positive integer", errBadRequest)
	}
	return id, nil
}

func intParam(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", errBadRequest, name)
	}
	return n, nil
}

func boolParam(r *http.Request, name string) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be true or false", errBadRequest, name)
	}
	return b, nil
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var dimErr *vector.DimensionMismatchError
	var corruptErr *vector.CorruptStoreError
	switch {
	case errors.As(err, &corruptErr):
		return http.StatusInternalServerError
	case errors.Is(err, errBadRequest),
		errors.Is(err, search.ErrInvalidQuery),
		errors.Is(err, ingest.ErrUnsupportedType),
		errors.Is(err, ingest.ErrEmptyFile),
		errors.Is(err, ingest.ErrNoFilename),
		errors.Is(err, vector.ErrInvalidID),
		errors.Is(err, vector.ErrInvalidK),
		errors.Is(err, vector.ErrInvalidDistance),
		errors.Is(err, vector.ErrInvalidVector),
		errors.As(err, &dimErr):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, vector.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
