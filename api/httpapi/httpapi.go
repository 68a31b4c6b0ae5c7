// Package httpapi exposes the progression engine over HTTP and a WebSocket
// event stream, for a presentation layer running elsewhere.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	wsadapter "wastewise/adapters/websocket"
	"wastewise/analytics"
	"wastewise/catalog"
	"wastewise/core"
	"wastewise/engine"
	"wastewise/realtime"
)

// Options configures the HTTP API surface.
type Options struct {
	// PathPrefix, if set, is prepended to all routes (e.g., "/api").
	PathPrefix string
	// CORSOrigins, if non-empty, enables CORS for those origins ("*" for any).
	CORSOrigins []string
	// APIKeys, if non-empty, enables static API key auth via Authorization: Bearer or X-API-Key.
	APIKeys []string
	// RateLimitEnabled toggles rate limiting.
	RateLimitEnabled bool
	// RateLimitRPM is the allowed requests per minute per client key.
	RateLimitRPM int
	// RateLimitBurst defines burst capacity.
	RateLimitBurst int
	// RateLimitCleanup drops idle client buckets after this long.
	RateLimitCleanup time.Duration
	// MaxImageBytes caps the scan upload size.
	MaxImageBytes int64
	// RequestTimeout bounds non-streaming requests.
	RequestTimeout time.Duration
	// Stats, if set, enables the /stats/summary and /stats/history reports.
	Stats *analytics.Metrics
	// Metrics, if set, is served at MetricsPath outside PathPrefix and
	// without API key auth, for scrapers.
	Metrics     http.Handler
	MetricsPath string
	Logger      *slog.Logger
}

const defaultMaxImageBytes = 8 << 20

type api struct {
	svc  *engine.Service
	hub  *realtime.Hub
	opts Options
	log  *slog.Logger
}

// NewMux builds an http.Handler exposing the WasteWise REST API and
// WebSocket stream. Routes, relative to PathPrefix:
//   - GET  /healthz
//   - GET  /progress
//   - GET  /progress/categories      scans toward each category's goal
//   - PUT  /progress/username        {"username": "..."}
//   - POST /progress/coins?amount=N
//   - POST /scans                    image bytes as the body
//   - POST /rewards/{kind}/{id}      kind is badge or sticker
//   - GET  /achievements
//   - GET  /stats/categories?top=N
//   - GET  /stats/summary?period=weekly&format=csv, /stats/history
//   - GET  /catalog/categories, /catalog/rewards, /catalog/lessons
//   - WS   /ws?types=level_up,...
//
// Options.Metrics, when set, is served at Options.MetricsPath from the root.
func NewMux(svc *engine.Service, hub *realtime.Hub, opts Options) http.Handler {
	if opts.MaxImageBytes <= 0 {
		opts.MaxImageBytes = defaultMaxImageBytes
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	a := &api{svc: svc, hub: hub, opts: opts, log: opts.Logger}
	if a.log == nil {
		a.log = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(withRequestLog(a.log))
	r.Use(middleware.Recoverer)
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
			MaxAge:         300,
		}))
	}
	if opts.RateLimitEnabled && opts.RateLimitRPM > 0 && opts.RateLimitBurst > 0 {
		r.Use(withRateLimit(newRateLimiter(opts.RateLimitRPM, opts.RateLimitBurst, opts.RateLimitCleanup)))
	}

	if opts.Metrics != nil && opts.MetricsPath != "" {
		r.Method(http.MethodGet, opts.MetricsPath, opts.Metrics)
	}

	r.Route(routePrefix(opts.PathPrefix), func(r chi.Router) {
		// health stays open for liveness checks
		r.Get("/healthz", a.healthCheck)

		r.Group(func(r chi.Router) {
			if len(opts.APIKeys) > 0 {
				r.Use(withAPIKeyAuth(opts.APIKeys))
			}
			if hub != nil {
				r.Handle("/ws", wsadapter.Handler(hub, a.log))
			}

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(opts.RequestTimeout))

				r.Get("/progress", a.getProgress)
				r.Get("/progress/categories", a.getCategoryProgress)
				r.Put("/progress/username", a.putUsername)
				r.Post("/progress/coins", a.postCoins)
				r.Post("/scans", a.postScan)
				r.Post("/rewards/{kind}/{id}", a.postUnlock)
				r.Get("/achievements", a.getAchievements)
				r.Get("/stats/categories", a.getTopCategories)
				if opts.Stats != nil {
					r.Get("/stats/summary", a.getSummary)
					r.Get("/stats/history", a.getHistory)
				}
				r.Get("/catalog/categories", a.getCategories)
				r.Get("/catalog/rewards", a.getRewards)
				r.Get("/catalog/lessons", a.getLessons)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
	})
	return r
}

// healthCheck verifies pending progress can be persisted.
func (a *api) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]any{"storage": "ok"}
	status := http.StatusOK
	if err := a.svc.Flush(ctx); err != nil {
		status = http.StatusServiceUnavailable
		checks["storage"] = "failed"
	}
	if a.hub != nil {
		checks["realtime_subscribers"] = a.hub.Len()
	}
	body := map[string]any{"status": "healthy", "checks": checks}
	if status != http.StatusOK {
		body["status"] = "unhealthy"
	}
	writeJSONStatus(w, status, body)
}

type progressResponse struct {
	Progress core.UserProgress  `json:"progress"`
	Level    core.LevelProgress `json:"level"`
}

func (a *api) getProgress(w http.ResponseWriter, r *http.Request) {
	p := a.svc.Snapshot()
	writeJSON(w, progressResponse{Progress: p, Level: core.ProgressFor(p)})
}

func (a *api) getCategoryProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.svc.CategoryProgress())
}

func (a *api) putUsername(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "expected {\"username\": \"...\"}", nil)
		return
	}
	p, err := a.svc.SetUsername(r.Context(), body.Username)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, progressResponse{Progress: p, Level: core.ProgressFor(p)})
}

func (a *api) postCoins(w http.ResponseWriter, r *http.Request) {
	amount, err := strconv.ParseInt(r.URL.Query().Get("amount"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_amount", "amount must be an integer", nil)
		return
	}
	total, err := a.svc.AddCoins(r.Context(), amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, map[string]any{"coins": total})
}

func (a *api) postScan(w http.ResponseWriter, r *http.Request) {
	image, err := io.ReadAll(http.MaxBytesReader(w, r.Body, a.opts.MaxImageBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "image_too_large", "image exceeds upload limit", map[string]any{"limit": tooLarge.Limit})
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_body", "could not read image", nil)
		return
	}
	out, err := a.svc.ProcessScan(r.Context(), image)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, out)
}

func (a *api) postUnlock(w http.ResponseWriter, r *http.Request) {
	kind, err := core.ParseRewardKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	p, err := a.svc.Unlock(r.Context(), kind, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, progressResponse{Progress: p, Level: core.ProgressFor(p)})
}

func (a *api) getAchievements(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.svc.Achievements())
}

func (a *api) getTopCategories(w http.ResponseWriter, r *http.Request) {
	top := 5
	if raw := r.URL.Query().Get("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_top", "top must be a positive integer", nil)
			return
		}
		top = n
	}
	writeJSON(w, a.svc.TopCategories(top))
}

func (a *api) getSummary(w http.ResponseWriter, r *http.Request) {
	period := analytics.PeriodDaily
	if raw := r.URL.Query().Get("period"); raw != "" {
		p, err := analytics.ParsePeriod(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_period", err.Error(), nil)
			return
		}
		period = p
	}
	data, err := a.opts.Stats.Summary(period, time.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_period", err.Error(), nil)
		return
	}
	a.writeReport(w, r, []analytics.AggregatedData{data})
}

func (a *api) getHistory(w http.ResponseWriter, r *http.Request) {
	a.writeReport(w, r, a.opts.Stats.History())
}

func (a *api) writeReport(w http.ResponseWriter, r *http.Request, rows []analytics.AggregatedData) {
	format := analytics.Format(r.URL.Query().Get("format"))
	if format == "" {
		format = analytics.FormatJSON
	}
	if format != analytics.FormatJSON && format != analytics.FormatCSV {
		writeError(w, http.StatusBadRequest, "invalid_format", "format must be json or csv", nil)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	if err := analytics.Export(w, format, rows); err != nil {
		a.log.Warn("stats export failed", "error", err)
	}
}

func (a *api) getCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.svc.Catalog().Categories)
}

type shopItem struct {
	catalog.RewardItem
	Owned bool `json:"owned"`
}

func (a *api) getRewards(w http.ResponseWriter, r *http.Request) {
	p := a.svc.Snapshot()
	cat := a.svc.Catalog()
	list := func(kind core.RewardKind) []shopItem {
		items := cat.Rewards(kind)
		out := make([]shopItem, 0, len(items))
		for _, it := range items {
			out = append(out, shopItem{RewardItem: it, Owned: p.Unlocked(kind, it.ID)})
		}
		return out
	}
	writeJSON(w, map[string]any{
		"coins":    p.Coins,
		"badges":   list(core.RewardBadge),
		"stickers": list(core.RewardSticker),
	})
}

func (a *api) getLessons(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.svc.Catalog().Lessons)
}

func routePrefix(prefix string) string {
	if prefix == "" || prefix == "/" {
		return "/"
	}
	if prefix[len(prefix)-1] == '/' {
		return prefix[:len(prefix)-1]
	}
	return prefix
}
