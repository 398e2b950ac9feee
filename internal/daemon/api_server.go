package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tiagogladstone/the-lost-archives/internal/api"
	"github.com/tiagogladstone/the-lost-archives/internal/config"
	"github.com/tiagogladstone/the-lost-archives/internal/logging"
	"github.com/tiagogladstone/the-lost-archives/internal/pipeline"
	"github.com/tiagogladstone/the-lost-archives/internal/queue"
	"github.com/tiagogladstone/the-lost-archives/internal/services"
)

const maxRequestBody = 1 << 20

type apiServer struct {
	bind     string
	logger   *slog.Logger
	daemon   *Daemon
	stories  *api.StoryService
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, errors.New("api server requires config and daemon")
	}
	bind := strings.TrimSpace(cfg.API.Bind)
	if bind == "" {
		return nil, errors.New("api.bind is empty")
	}
	srv := &apiServer{
		bind:    bind,
		logger:  logging.NewComponentLogger(logger, "api-server"),
		daemon:  d,
		stories: api.NewStoryService(d.store),
	}
	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/stories", s.handleListStories)
	mux.HandleFunc("POST /api/stories", s.handleCreateStory)
	mux.HandleFunc("GET /api/stories/{id}", s.handleDescribeStory)
	mux.HandleFunc("POST /api/stories/{id}/start", s.handleStartStory)
	mux.HandleFunc("POST /api/stories/{id}/select", s.handleSelect)
	mux.HandleFunc("POST /api/stories/{id}/publish", s.handlePublish)
	mux.HandleFunc("POST /api/stories/{id}/regenerate-thumbnail", s.handleRegenerate)
	mux.HandleFunc("POST /api/stories/{id}/retry", s.handleRetry)
	mux.HandleFunc("GET /api/jobs", s.handleJobs)
	return mux
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening",
		logging.String(logging.FieldEventType, "api_listening"),
		logging.String("address", listener.Addr().String()),
	)
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp, healthy := s.daemon.Health(r.Context())
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, resp)
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *apiServer) handleListStories(w http.ResponseWriter, r *http.Request) {
	var statuses []queue.StoryStatus
	for _, value := range r.URL.Query()["status"] {
		if strings.TrimSpace(value) == "" {
			continue
		}
		status, ok := queue.ParseStoryStatus(value)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown story status %q", value))
			return
		}
		statuses = append(statuses, status)
	}
	stories, err := s.stories.List(r.Context(), statuses...)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.StoryListResponse{Stories: stories})
}

func (s *apiServer) handleCreateStory(w http.ResponseWriter, r *http.Request) {
	var req api.CreateStoryRequest
	if !s.decode(w, r, &req) {
		return
	}
	brief := pipeline.Brief{
		Topic:                 req.Topic,
		Description:           req.Description,
		TargetDurationMinutes: req.TargetDurationMinutes,
		Languages:             req.Languages,
		Style:                 req.Style,
		AspectRatio:           req.AspectRatio,
	}
	var (
		story *queue.Story
		err   error
	)
	if req.Draft {
		story, err = s.daemon.coordinator.CreateStory(r.Context(), brief)
	} else {
		story, err = s.daemon.coordinator.CreateAndStart(r.Context(), brief)
	}
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.StoryResponse{Story: api.FromStory(story)})
}

func (s *apiServer) handleDescribeStory(w http.ResponseWriter, r *http.Request) {
	id, ok := s.storyID(w, r)
	if !ok {
		return
	}
	detail, err := s.stories.Describe(r.Context(), id)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, detail)
}

func (s *apiServer) handleStartStory(w http.ResponseWriter, r *http.Request) {
	id, ok := s.storyID(w, r)
	if !ok {
		return
	}
	if err := s.daemon.coordinator.Start(r.Context(), id); err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeStory(w, r, id, http.StatusAccepted)
}

func (s *apiServer) handleSelect(w http.ResponseWriter, r *http.Request) {
	id, ok := s.storyID(w, r)
	if !ok {
		return
	}
	var req api.SelectRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.TitleID <= 0 || req.ThumbnailID <= 0 {
		s.writeError(w, http.StatusBadRequest, "titleId and thumbnailId are required")
		return
	}
	if err := s.daemon.coordinator.SelectForReview(r.Context(), id, req.TitleID, req.ThumbnailID); err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeStory(w, r, id, http.StatusOK)
}

func (s *apiServer) handlePublish(w http.ResponseWriter, r *http.Request) {
	id, ok := s.storyID(w, r)
	if !ok {
		return
	}
	if err := s.daemon.coordinator.Publish(r.Context(), id); err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeStory(w, r, id, http.StatusAccepted)
}

func (s *apiServer) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	id, ok := s.storyID(w, r)
	if !ok {
		return
	}
	var req api.RegenerateRequest
	if !s.decode(w, r, &req) {
		return
	}
	jobID, err := s.daemon.coordinator.RegenerateThumbnail(r.Context(), id, req.Feedback)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.RegenerateResponse{JobID: jobID})
}

func (s *apiServer) handleRetry(w http.ResponseWriter, r *http.Request) {
	id, ok := s.storyID(w, r)
	if !ok {
		return
	}
	result, err := s.daemon.coordinator.Retry(r.Context(), id)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.RetryResponse{
		StoryID: result.StoryID,
		Status:  string(result.Status),
		JobIDs:  result.JobIDs,
	})
}

func (s *apiServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var filter queue.JobFilter
	for _, value := range query["status"] {
		status, ok := queue.ParseJobStatus(value)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown job status %q", value))
			return
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	for _, value := range query["type"] {
		jobType, ok := queue.ParseJobType(value)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown job type %q", value))
			return
		}
		filter.Types = append(filter.Types, jobType)
	}
	if value := strings.TrimSpace(query.Get("story")); value != "" {
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil || id <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid story id")
			return
		}
		filter.StoryID = id
	}
	if value := strings.TrimSpace(query.Get("limit")); value != "" {
		limit, err := strconv.Atoi(value)
		if err != nil || limit < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}
	jobs, err := s.stories.Jobs(r.Context(), filter)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: jobs})
}

func (s *apiServer) storyID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid story id")
		return 0, false
	}
	return id, true
}

func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func (s *apiServer) writeStory(w http.ResponseWriter, r *http.Request, id int64, status int) {
	story, err := s.daemon.store.GetStory(r.Context(), id)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, status, api.StoryResponse{Story: api.FromStory(story)})
}

// writeFailure maps domain errors onto HTTP status codes.
func (s *apiServer) writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, queue.ErrNotFound), errors.Is(err, services.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, queue.ErrInvalidState):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrValidation):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("api request failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}
