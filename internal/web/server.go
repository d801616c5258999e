package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hummus-exchange/farm/internal/logger"
	"github.com/hummus-exchange/farm/internal/metrics"
	"github.com/hummus-exchange/farm/internal/types"
)

var webLogger = logger.GetForComponent("web_server")

// Ledger is the live state served by the API. keeper.Keeper implements it.
type Ledger interface {
	Pools() []types.Pool
	Pool(pid types.PoolID) (types.Pool, error)
	PendingTokens(pid types.PoolID, account types.Address) (types.PendingTokens, error)
	Gauges() []types.Gauge
	Epoch() types.EpochInfo
	VotesOf(account types.Address) []types.VoteAllocation
	EscrowBalance(account types.Address) sdkmath.Int
	Snapshot() types.LedgerSnapshot
	Distribute() (bool, error)
}

// History is the persisted state. state.PostgresStore implements it.
type History interface {
	LatestSnapshot() (*types.LedgerSnapshot, error)
	RecentOperations(limit int) ([]types.OperationRecord, error)
	RewardSummaries() ([]types.RewardSummary, error)
}

type Config struct {
	Port     string
	Ledger   Ledger
	Operator Operator     // nil serves the read API only
	History  History      // nil serves snapshots from memory and disables history routes
	DBCheck  func() error // optional database health check
	Labels   map[types.Address]string
}

// WebServer serves the ledger API and the Prometheus endpoint.
type WebServer struct {
	router   *mux.Router
	port     string
	ledger   Ledger
	operator Operator
	history  History
	dbCheck  func() error
	labels   map[types.Address]string
	started  time.Time
}

// NewWebServer creates a new web server instance
func NewWebServer(cfg Config) *WebServer {
	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router:   mux.NewRouter(),
		port:     port,
		ledger:   cfg.Ledger,
		operator: cfg.Operator,
		history:  cfg.History,
		dbCheck:  cfg.DBCheck,
		labels:   cfg.Labels,
		started:  time.Now(),
	}

	server.setupRoutes()
	return server
}

func (ws *WebServer) setupRoutes() {
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")
	ws.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/pools", ws.handleGetPools).Methods("GET")
	api.HandleFunc("/pools/{pid:[0-9]+}", ws.handleGetPool).Methods("GET")
	api.HandleFunc("/pools/{pid:[0-9]+}/pending/{account}", ws.handleGetPending).Methods("GET")
	api.HandleFunc("/gauges", ws.handleGetGauges).Methods("GET")
	api.HandleFunc("/gauges/distribute", ws.handleDistribute).Methods("POST")
	api.HandleFunc("/epoch", ws.handleGetEpoch).Methods("GET")
	api.HandleFunc("/accounts/{account}/votes", ws.handleGetVotes).Methods("GET")
	api.HandleFunc("/snapshots/latest", ws.handleGetLatestSnapshot).Methods("GET")
	api.HandleFunc("/operations", ws.handleGetOperations).Methods("GET")
	api.HandleFunc("/analytics/rewards", ws.handleGetRewardSummaries).Methods("GET")
	if ws.operator != nil {
		ws.setupOperatorRoutes(api)
	}

	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
	ws.router.Use(metrics.Middleware)
}

// Handler exposes the router, mainly for tests.
func (ws *WebServer) Handler() http.Handler { return ws.router }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (ws *WebServer) Run(ctx context.Context) error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		webLogger.Info().Msg("Shutting down web server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	dbHealthy := true
	if ws.dbCheck != nil {
		if err := ws.dbCheck(); err != nil {
			webLogger.Warn().Err(err).Msg("Database health check failed")
			dbHealthy = false
		}
	}

	epoch := ws.ledger.Epoch()
	overallStatus := "OK"
	statusCode := http.StatusOK
	if !dbHealthy {
		overallStatus = "DEGRADED"
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]any{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
			"uptime_seconds":   int64(time.Since(ws.started).Seconds()),
		},
		"component": map[string]any{
			"name":    "hummus-farm",
			"version": "1.0.0",
		},
		"farm_status": map[string]any{
			"database_healthy": dbHealthy,
			"pools":            len(ws.ledger.Pools()),
			"epoch":            epoch.Number,
			"epoch_phase":      epoch.Phase,
		},
	}

	ws.writeJSONResponse(w, statusCode, response)
}

type poolView struct {
	types.Pool
	Label string `json:"label,omitempty"`
}

func (ws *WebServer) view(p types.Pool) poolView {
	return poolView{Pool: p, Label: ws.labels[p.LPToken]}
}

func (ws *WebServer) handleGetPools(w http.ResponseWriter, r *http.Request) {
	pools := ws.ledger.Pools()
	views := make([]poolView, 0, len(pools))
	for _, p := range pools {
		views = append(views, ws.view(p))
	}

	response := map[string]any{
		"pools": views,
		"count": len(views),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

func (ws *WebServer) handleGetPool(w http.ResponseWriter, r *http.Request) {
	pid, ok := ws.poolID(w, r)
	if !ok {
		return
	}
	pool, err := ws.ledger.Pool(pid)
	if err != nil {
		ws.writeLedgerError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, ws.view(pool))
}

func (ws *WebServer) handleGetPending(w http.ResponseWriter, r *http.Request) {
	pid, ok := ws.poolID(w, r)
	if !ok {
		return
	}
	account, ok := ws.account(w, r)
	if !ok {
		return
	}
	pending, err := ws.ledger.PendingTokens(pid, account)
	if err != nil {
		ws.writeLedgerError(w, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, pending)
}

func (ws *WebServer) handleGetGauges(w http.ResponseWriter, r *http.Request) {
	gauges := ws.ledger.Gauges()
	response := map[string]any{
		"gauges": gauges,
		"count":  len(gauges),
		"epoch":  ws.ledger.Epoch(),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

func (ws *WebServer) handleDistribute(w http.ResponseWriter, r *http.Request) {
	pushed, err := ws.ledger.Distribute()
	if err != nil {
		webLogger.Error().Err(err).Msg("Gauge distribution failed")
		ws.writeLedgerError(w, err)
		return
	}
	response := map[string]any{
		"pushed": pushed,
		"epoch":  ws.ledger.Epoch(),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

func (ws *WebServer) handleGetEpoch(w http.ResponseWriter, r *http.Request) {
	ws.writeJSONResponse(w, http.StatusOK, ws.ledger.Epoch())
}

func (ws *WebServer) handleGetVotes(w http.ResponseWriter, r *http.Request) {
	account, ok := ws.account(w, r)
	if !ok {
		return
	}
	response := map[string]any{
		"account":        account,
		"escrow_balance": ws.ledger.EscrowBalance(account),
		"votes":          ws.ledger.VotesOf(account),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetLatestSnapshot prefers the persisted snapshot and falls back to
// the live ledger when nothing has been stored yet.
func (ws *WebServer) handleGetLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	if ws.history != nil {
		snap, err := ws.history.LatestSnapshot()
		if err != nil {
			webLogger.Error().Err(err).Msg("Failed to get latest snapshot")
			ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve snapshot")
			return
		}
		if snap != nil {
			ws.writeJSONResponse(w, http.StatusOK, snap)
			return
		}
	}
	ws.writeJSONResponse(w, http.StatusOK, ws.ledger.Snapshot())
}

func (ws *WebServer) handleGetOperations(w http.ResponseWriter, r *http.Request) {
	if ws.history == nil {
		ws.writeErrorResponse(w, http.StatusNotImplemented, "Operation history requires a database")
		return
	}
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	ops, err := ws.history.RecentOperations(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get recent operations")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve operations")
		return
	}

	response := map[string]any{
		"operations": ops,
		"count":      len(ops),
		"limit":      limit,
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

func (ws *WebServer) handleGetRewardSummaries(w http.ResponseWriter, r *http.Request) {
	if ws.history == nil {
		ws.writeErrorResponse(w, http.StatusNotImplemented, "Reward analytics require a database")
		return
	}
	summaries, err := ws.history.RewardSummaries()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get reward summaries")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve reward summaries")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]any{"pools": summaries})
}

func (ws *WebServer) poolID(w http.ResponseWriter, r *http.Request) (types.PoolID, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["pid"], 10, 64)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid pool ID")
		return 0, false
	}
	return types.PoolID(id), true
}

func (ws *WebServer) account(w http.ResponseWriter, r *http.Request) (types.Address, bool) {
	raw := mux.Vars(r)["account"]
	if !common.IsHexAddress(raw) {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid account address")
		return types.Address{}, false
	}
	return common.HexToAddress(raw), true
}

// writeLedgerError maps the error taxonomy onto HTTP status codes.
func (ws *WebServer) writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, types.ErrPoolNotFound), errors.Is(err, types.ErrGaugeNotFound), errors.Is(err, types.ErrNoLock):
		ws.writeErrorResponse(w, http.StatusNotFound, err.Error())
	case errors.Is(err, types.ErrUnauthorized):
		ws.writeErrorResponse(w, http.StatusForbidden, err.Error())
	case errors.Is(err, types.ErrInvalidParameter):
		ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, types.ErrNotInitialized), errors.Is(err, types.ErrAlreadyInitialized),
		errors.Is(err, types.ErrDuplicatePool), errors.Is(err, types.ErrDuplicateGauge),
		errors.Is(err, types.ErrEpochLocked), errors.Is(err, types.ErrLockExists), errors.Is(err, types.ErrLockNotExpired):
		ws.writeErrorResponse(w, http.StatusConflict, err.Error())
	case errors.Is(err, types.ErrInsufficientBalance), errors.Is(err, types.ErrInsufficientVotingPower),
		errors.Is(err, types.ErrInsufficientFunds), errors.Is(err, types.ErrTransferRejected),
		errors.Is(err, types.ErrArithmeticOverflow):
		ws.writeErrorResponse(w, http.StatusUnprocessableEntity, err.Error())
	default:
		ws.writeErrorResponse(w, http.StatusInternalServerError, err.Error())
	}
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]any{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		webLogger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
