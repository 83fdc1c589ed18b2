package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DeafMist/kpop-radar/backend/internal/blacklist"
	"github.com/DeafMist/kpop-radar/backend/internal/cache"
	"github.com/DeafMist/kpop-radar/backend/internal/keywords"
	"github.com/DeafMist/kpop-radar/backend/internal/models"
	"github.com/DeafMist/kpop-radar/backend/internal/processing"
)

// refresher is what the handlers need from the scheduler.
type refresher interface {
	Fetch(ctx context.Context, in keywords.Input) *models.ContentReport
	RefreshAsync(inputs []keywords.Input) (string, []keywords.Input)
	SetKeywords(inputs []keywords.Input)
	Keywords() []keywords.Input
	Interval() time.Duration
}

type apiKeys struct {
	YouTube     bool
	NaverID     bool
	NaverSecret bool
}

type server struct {
	log        *slog.Logger
	cache      *cache.Cache
	refresher  refresher
	normalizer *keywords.Normalizer
	blacklist  blacklist.Store
	keys       apiKeys
	gatherer   prometheus.Gatherer
	// health reports backing store connectivity; nil means nothing to check.
	health func(ctx context.Context) error
}

type errorResponse struct {
	Error string `json:"error"`
}

type statusResponse struct {
	Status                string            `json:"status"`
	UpdateIntervalMinutes int               `json:"update_interval_minutes"`
	CachedKeywords        []string          `json:"cached_keywords"`
	TotalCachedContents   int               `json:"total_cached_contents"`
	LastUpdate            *time.Time        `json:"last_update"`
	APIKeys               map[string]string `json:"api_keys"`
}

type keywordsRequest struct {
	Keywords *[]keywords.Input `json:"keywords"`
}

type refreshResponse struct {
	Message  string           `json:"message"`
	Keywords []keywords.Input `json:"keywords"`
	Status   string           `json:"status"`
	JobID    string           `json:"job_id"`
}

type blockRequest struct {
	ContentID string `json:"content_id"`
	URL       string `json:"url"`
	Title     string `json:"title"`
}

type blockResponse struct {
	Message   string         `json:"message"`
	ContentID string         `json:"content_id"`
	URL       string         `json:"url"`
	Blacklist blacklist.List `json:"blacklist"`
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	api := func(r chi.Router) {
		r.Get("/content", s.handleContent)
		r.Get("/status", s.handleStatus)
		r.Post("/refresh", s.handleRefresh)
		r.Get("/keywords", s.handleGetKeywords)
		r.Post("/keywords", s.handleSetKeywords)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/blacklist", s.handleBlacklist)
			r.Post("/block", s.handleBlock)
			r.Post("/unblock", s.handleUnblock)
		})
	}
	api(r)
	r.Route("/api", api)

	return r
}

// cors allows the browser frontend to call the API from any origin.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.health(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleContent(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("keyword"))
	if raw == "" {
		writeJSON(w, http.StatusOK, blacklist.FilterReports(s.blacklist, s.cache.Snapshot()))
		return
	}

	if report, ok := s.cache.Get(raw); ok {
		writeJSON(w, http.StatusOK, blacklist.FilterReport(s.blacklist, report))
		return
	}

	in := keywords.Text(raw)
	if report, ok := s.cache.Get(s.normalizer.Normalize(in).Display()); ok {
		writeJSON(w, http.StatusOK, blacklist.FilterReport(s.blacklist, report))
		return
	}

	s.log.Info("cache miss, collecting live", slog.String("keyword", raw))
	report := s.refresher.Fetch(r.Context(), in)
	writeJSON(w, http.StatusOK, blacklist.FilterReport(s.blacklist, report))
}

func (s *server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	var last *time.Time
	if ts := s.cache.UpdatedAt(); !ts.IsZero() {
		last = &ts
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Status:                "running",
		UpdateIntervalMinutes: int(s.refresher.Interval() / time.Minute),
		CachedKeywords:        s.cache.Keywords(),
		TotalCachedContents:   s.cache.TotalContents(),
		LastUpdate:            last,
		APIKeys: map[string]string{
			"youtube":      configured(s.keys.YouTube),
			"naver_id":     configured(s.keys.NaverID),
			"naver_secret": configured(s.keys.NaverSecret),
		},
	})
}

func (s *server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req keywordsRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	var inputs []keywords.Input
	if req.Keywords != nil {
		inputs = s.normalize(*req.Keywords)
	}

	id, tracked := s.refresher.RefreshAsync(inputs)
	s.log.Info("refresh requested", slog.String("job_id", id), slog.Int("keywords", len(tracked)))
	writeJSON(w, http.StatusAccepted, refreshResponse{
		Message:  "refresh started",
		Keywords: tracked,
		Status:   "collecting",
		JobID:    id,
	})
}

func (s *server) handleGetKeywords(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]keywords.Input{"keywords": s.refresher.Keywords()})
}

func (s *server) handleSetKeywords(w http.ResponseWriter, r *http.Request) {
	var req keywordsRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if req.Keywords == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "keywords field is required"})
		return
	}

	s.refresher.SetKeywords(s.normalize(*req.Keywords))
	id, tracked := s.refresher.RefreshAsync(nil)
	s.log.Info("tracked keywords replaced", slog.String("job_id", id), slog.Int("keywords", len(tracked)))
	writeJSON(w, http.StatusOK, refreshResponse{
		Message:  "keywords updated",
		Keywords: tracked,
		Status:   "collecting",
		JobID:    id,
	})
}

func (s *server) handleBlacklist(w http.ResponseWriter, r *http.Request) {
	list, err := s.blacklist.List(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *server) handleBlock(w http.ResponseWriter, r *http.Request) {
	var req blockRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	req.ContentID = strings.TrimSpace(req.ContentID)
	req.URL = strings.TrimSpace(req.URL)
	if req.ContentID == "" && (req.Title != "" || req.URL != "") {
		req.ContentID = processing.Fingerprint(req.Title, req.URL)
	}
	if req.ContentID == "" && req.URL == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "content_id or url is required"})
		return
	}

	list, err := s.blacklist.Add(r.Context(), req.ContentID, req.URL)
	if err != nil {
		s.log.Error("block content", slog.String("content_id", req.ContentID), slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, blockResponse{
		Message:   "added to blacklist",
		ContentID: req.ContentID,
		URL:       req.URL,
		Blacklist: list,
	})
}

func (s *server) handleUnblock(w http.ResponseWriter, r *http.Request) {
	var req blockRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	req.ContentID = strings.TrimSpace(req.ContentID)
	req.URL = strings.TrimSpace(req.URL)
	if req.ContentID == "" && req.URL == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "content_id or url is required"})
		return
	}

	list, err := s.blacklist.Remove(r.Context(), req.ContentID, req.URL)
	if err != nil {
		s.log.Error("unblock content", slog.String("content_id", req.ContentID), slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, blockResponse{
		Message:   "removed from blacklist",
		ContentID: req.ContentID,
		URL:       req.URL,
		Blacklist: list,
	})
}

// normalize resolves client input into bilingual pairs so the tracked set is
// stored in its canonical form.
func (s *server) normalize(inputs []keywords.Input) []keywords.Input {
	out := make([]keywords.Input, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, keywords.Pair(s.normalizer.Normalize(in)))
	}
	return out
}

func configured(ok bool) string {
	if ok {
		return "configured"
	}
	return "missing"
}

// decodeBody reads a JSON body into dst. An empty body is accepted when
// optional is set.
func decodeBody(r *http.Request, dst any, optional bool) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		if optional {
			return nil
		}
		return errors.New("request body is required")
	}
	if err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
