package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vexfs/vexfs/internal/logger"
	"github.com/vexfs/vexfs/pkg/config"
	"github.com/vexfs/vexfs/pkg/event"
	"github.com/vexfs/vexfs/pkg/httpshim"
	"github.com/vexfs/vexfs/pkg/stream"
	"github.com/vexfs/vexfs/pkg/verrors"
)

// newRouter builds the admin REST API + WebSocket stream endpoint
// exposing c's httpshim.Core over the wire formats in
// pkg/httpshim/wire.go.
func newRouter(c *components) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", handleHealth(c.vectors))
	r.Post("/api/v1/auth/token", handleIssueToken(c.cfg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return requireBearerToken(c.cfg.HTTP.JWTSecret, next)
		})
		r.Get("/metrics", handleMetrics(c.vectors))
		r.Route("/collections", func(r chi.Router) {
			r.Get("/", handleListCollections(c.vectors))
			r.Post("/", handleCreateCollection(c.vectors))
			r.Route("/{name}", func(r chi.Router) {
				r.Delete("/", handleDeleteCollection(c.vectors))
				r.Post("/vectors", handleUpsert(c))
				r.Post("/search", handleSearch(c.vectors))
			})
		})
		r.Get("/stream", handleStream(c.streams))
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Info("http request",
			"method", r.Method, "path", r.URL.Path,
			"status", ww.Status(), "duration", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func statusFor(err error) int {
	switch {
	case verrors.Is(err, verrors.NotFound):
		return http.StatusNotFound
	case verrors.Is(err, verrors.Conflict):
		return http.StatusConflict
	case verrors.Is(err, verrors.Argument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func handleIssueToken(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Passphrase string `json:"passphrase"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if cfg.HTTP.AdminPassphrase != "" && req.Passphrase != cfg.HTTP.AdminPassphrase {
			writeError(w, http.StatusUnauthorized, "invalid passphrase")
			return
		}
		token, exp, err := issueToken(cfg.HTTP.JWTSecret)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": token,
			"expires_at":   exp,
		})
	}
}

func handleHealth(core httpshim.Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h, err := core.Health(r.Context())
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, h.ToWire())
	}
}

func handleMetrics(core httpshim.Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := core.Metrics(r.Context())
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, m.ToWire())
	}
}

func handleListCollections(core httpshim.Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cols, err := core.ListCollections(r.Context())
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		wire := make([]httpshim.CollectionWire, 0, len(cols))
		for _, col := range cols {
			wire = append(wire, col.ToWire())
		}
		writeJSON(w, http.StatusOK, wire)
	}
}

func handleCreateCollection(core httpshim.Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req httpshim.CreateCollectionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		metric, err := httpshim.ParseMetric(req.Metric)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := core.CreateCollection(r.Context(), req.Name, req.Dimensions, metric); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		w.WriteHeader(http.StatusCreated)
	}
}

func handleDeleteCollection(core httpshim.Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if err := core.DeleteCollection(r.Context(), name); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleUpsert(c *components) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		var req httpshim.UpsertRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := c.vectors.Upsert(r.Context(), name, req.ID, req.Vector, req.Metadata); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}

		e := c.emitter.Emit(event.TypeVectorInsert, event.Context{"collection": name}, event.FlagAgentVisible,
			event.PriorityNormal, nil, map[string]string{"id": strconv.FormatUint(req.ID, 10)})
		c.publish(r.Context(), e)

		w.WriteHeader(http.StatusNoContent)
	}
}

func handleSearch(core httpshim.Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		var req httpshim.SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		hits, err := core.Search(r.Context(), name, req.Vector, req.K)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, httpshim.SearchResponse{Hits: httpshim.ToWireHits(hits)})
	}
}

func handleStream(streams *stream.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agentID := r.URL.Query().Get("agent_id")
		if agentID == "" {
			agentID = "anonymous"
		}
		_, ch, err := streams.Subscribe(agentID, nil, 0, true, 0)
		if err != nil {
			writeError(w, http.StatusTooManyRequests, err.Error())
			return
		}
		stream.ServeWebSocket(w, r, ch)
	}
}
