package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"forged/internal/controller"
	"forged/internal/profile"
	"forged/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Submit(ctx context.Context, req controller.Request) (controller.Outcome, error)
	Complete(id string) error
	Cancel(id string) error
	GetSession(id string) (controller.Session, bool)
	Sessions() []controller.Session
	Status() types.StatusResponse
	Profile() profile.Profile
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Post("/v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req types.SessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.ContextTokens <= 0 {
			writeJSONError(w, http.StatusBadRequest, "context_tokens must be > 0")
			return
		}
		creq := controller.Request{ContextTokens: req.ContextTokens, Priority: req.Priority}
		if req.KVCacheDtype != "" {
			d, err := profile.ParseDtype(req.KVCacheDtype)
			if err != nil {
				writeJSONError(w, http.StatusBadRequest, err.Error())
				return
			}
			creq.Dtype = d
		}

		start := time.Now()
		lvl := requestLogLevel(r)
		// Join server base context with request context so shutdown cancels work too.
		joinedCtx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		out, err := svc.Submit(joinedCtx, creq)
		if err != nil {
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			status := http.StatusInternalServerError
			switch {
			case controller.IsRequestTooLarge(err):
				status = http.StatusRequestEntityTooLarge
			case controller.IsQueueFull(err):
				status = http.StatusServiceUnavailable
				IncrementBackpressure("queue_full")
				writeJSONError(w, status, "queue full")
				logSubmit(r, lvl, status, start, err)
				return
			default:
				if he, ok := err.(HTTPError); ok {
					status = he.StatusCode()
				}
			}
			writeJSONError(w, status, err.Error())
			logSubmit(r, lvl, status, start, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if out.Queued {
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(types.QueuedResponse{SessionID: out.SessionID, Position: out.Position, State: "queued"})
			logSubmit(r, lvl, http.StatusAccepted, start, nil)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(types.SessionResponse{SessionID: out.SessionID, State: "admitted"})
		logSubmit(r, lvl, http.StatusCreated, start, nil)
	})

	r.Get("/v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		sessions := svc.Sessions()
		resp := types.SessionsResponse{Sessions: make([]types.SessionStatus, 0, len(sessions))}
		for _, s := range sessions {
			resp.Sessions = append(resp.Sessions, controller.SessionStatusOf(s))
		}
		writeJSON(w, resp)
	})

	r.Get("/v1/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		s, ok := svc.GetSession(id)
		if !ok {
			writeJSONError(w, http.StatusNotFound, "session not found: "+id)
			return
		}
		writeJSON(w, controller.SessionStatusOf(s))
	})

	r.Delete("/v1/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := svc.Cancel(id); err != nil {
			writeLifecycleError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	// Completion callback from the external inference engine.
	r.Post("/v1/sessions/{id}/complete", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := svc.Complete(id); err != nil {
			writeLifecycleError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	// Active profile, verbatim; identical for the life of the process.
	r.Get("/v1/sku", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Profile())
	})

	r.Get("/v1/performance/targets", func(w http.ResponseWriter, r *http.Request) {
		p := svc.Profile()
		writeJSON(w, types.PerformanceTargets{TargetTTFTMs: p.TargetTTFTMs, TargetTPS: p.TargetTPS})
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Status())
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Profile().SKUID != "" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}

// writeLifecycleError maps Complete/Cancel errors. Invalid transitions are
// an internal invariant class: the request is aborted with diagnostic
// detail and the error is logged for the operator, never dressed up as a
// normal rejection.
func writeLifecycleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case controller.IsSessionNotFound(err):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case controller.IsInvalidTransition(err):
		if zlog != nil {
			z := zlog.Error().Str("path", r.URL.Path)
			if rid := middleware.GetReqID(r.Context()); rid != "" {
				z = z.Str("request_id", rid)
			}
			z.Err(err).Msg("lifecycle invariant violation")
		} else {
			log.Printf("lifecycle invariant violation path=%s err=%v", r.URL.Path, err)
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}

func logSubmit(r *http.Request, lvl LogLevel, status int, start time.Time, err error) {
	if lvl < LevelInfo {
		return
	}
	if zlog != nil {
		z := zlog.Info().Int("status", status).Dur("dur", time.Since(start))
		if rid := middleware.GetReqID(r.Context()); rid != "" {
			z = z.Str("request_id", rid)
		}
		if err != nil {
			z = z.Err(err)
		}
		z.Msg("submit end")
		return
	}
	if err != nil {
		log.Printf("submit end status=%d dur=%s err=%v", status, time.Since(start), err)
	} else {
		log.Printf("submit end status=%d dur=%s", status, time.Since(start))
	}
}
