package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// DiagnosticsHandler probes every external dependency and reports boolean
// connectivity plus any captured error. It never fails the request itself.
type DiagnosticsHandler struct {
	pool        *pgxpool.Pool
	redis       *redis.Client
	providerURL string
	httpClient  *http.Client
}

func NewDiagnosticsHandler(pool *pgxpool.Pool, redisClient *redis.Client, providerURL string) *DiagnosticsHandler {
	return &DiagnosticsHandler{
		pool:        pool,
		redis:       redisClient,
		providerURL: providerURL,
		httpClient:  &http.Client{Timeout: 5 * time.Second},
	}
}

type dependencyStatus struct {
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
}

func (h *DiagnosticsHandler) Probe(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	report := map[string]dependencyStatus{
		"database": h.checkDatabase(ctx),
		"cache":    h.checkCache(ctx),
		"provider": h.checkProvider(ctx),
	}

	writeJSON(w, http.StatusOK, report)
}

func (h *DiagnosticsHandler) checkDatabase(ctx context.Context) dependencyStatus {
	if h.pool == nil {
		return dependencyStatus{Error: "not configured"}
	}
	if err := h.pool.Ping(ctx); err != nil {
		return dependencyStatus{Error: err.Error()}
	}
	return dependencyStatus{Connected: true}
}

func (h *DiagnosticsHandler) checkCache(ctx context.Context) dependencyStatus {
	if h.redis == nil {
		return dependencyStatus{Error: "not configured"}
	}
	if err := h.redis.Ping(ctx).Err(); err != nil {
		return dependencyStatus{Error: err.Error()}
	}
	return dependencyStatus{Connected: true}
}

func (h *DiagnosticsHandler) checkProvider(ctx context.Context) dependencyStatus {
	if h.providerURL == "" {
		return dependencyStatus{Error: "not configured"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, h.providerURL, nil)
	if err != nil {
		return dependencyStatus{Error: err.Error()}
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return dependencyStatus{Error: err.Error()}
	}
	resp.Body.Close()

	// Any HTTP response means the endpoint is reachable; many inference
	// endpoints reject HEAD with 4xx.
	return dependencyStatus{Connected: true}
}
