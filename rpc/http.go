package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"agora/native/governance"
	"agora/native/launch"
	"agora/native/quorum"
	"agora/observability"
	"agora/state"
)

const jsonRPCVersion = "2.0"

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
)

// Options carries the HTTP-level knobs for the server.
type Options struct {
	RateLimit       float64
	RateBurst       int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxRequestBytes int64
}

func (o Options) withDefaults() Options {
	if o.RateLimit <= 0 {
		o.RateLimit = 50
	}
	if o.RateBurst <= 0 {
		o.RateBurst = 100
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 15 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 30 * time.Second
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = 120 * time.Second
	}
	if o.MaxRequestBytes <= 0 {
		o.MaxRequestBytes = 1 << 20
	}
	return o
}

// Server exposes the launchpad over JSON-RPC 2.0. Mutating methods are
// serialized behind a single mutex and wrapped in a state transaction, so a
// handler error can never leave partial state behind.
type Server struct {
	launch     *launch.Engine
	quorum     *quorum.Engine
	governance *governance.Engine
	manager    *state.Manager

	logger    *slog.Logger
	limiter   *rate.Limiter
	authToken string
	opts      Options

	writeMu sync.Mutex
}

// NewServer wires the engines and state manager into an RPC server. An empty
// authToken disables the admin methods entirely.
func NewServer(launchEngine *launch.Engine, quorumEngine *quorum.Engine, governanceEngine *governance.Engine, manager *state.Manager, authToken string, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()
	return &Server{
		launch:     launchEngine,
		quorum:     quorumEngine,
		governance: governanceEngine,
		manager:    manager,
		logger:     logger,
		limiter:    rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateBurst),
		authToken:  strings.TrimSpace(authToken),
		opts:       opts,
	}
}

// Handler returns the http.Handler serving the RPC endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	return mux
}

// Start serves the RPC endpoint until the listener fails.
func (s *Server) Start(addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}
	s.logger.Info("starting JSON-RPC server", "addr", addr)
	return server.ListenAndServe()
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "POST required", nil)
		return
	}
	if !s.limiter.Allow() {
		observability.ModuleMetrics().Throttle("rpc", "rate_limit")
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", nil)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, s.opts.MaxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "unable to read request body", nil)
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported JSON-RPC version", nil)
		return
	}

	recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.route(recorder, r, &req)
	observability.ModuleMetrics().Observe(moduleOf(req.Method), req.Method, recorder.status, time.Since(start))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func moduleOf(method string) string {
	if idx := strings.Index(method, "_"); idx > 0 {
		return method[:idx]
	}
	return "unknown"
}

func (s *Server) route(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	switch req.Method {
	case "launch_getMarket":
		s.handleLaunchGetMarket(w, req)
	case "launch_listMarkets":
		s.handleLaunchListMarkets(w, req)
	case "launch_getCurrentPrice":
		s.handleLaunchGetCurrentPrice(w, req)
	case "launch_calculatePurchaseReturn":
		s.handleLaunchCalculatePurchaseReturn(w, req)
	case "launch_calculateSaleReturn":
		s.handleLaunchCalculateSaleReturn(w, req)
	case "launch_buy":
		s.handleLaunchBuy(w, req)
	case "launch_sell":
		s.handleLaunchSell(w, req)
	case "quorum_propose":
		s.handleQuorumPropose(w, req)
	case "quorum_approve":
		s.handleQuorumApprove(w, req)
	case "quorum_getProposal":
		s.handleQuorumGetProposal(w, req)
	case "gov_propose":
		s.handleGovPropose(w, req)
	case "gov_vote":
		s.handleGovVote(w, req)
	case "gov_execute":
		s.handleGovExecute(w, req)
	case "gov_getProposal":
		s.handleGovGetProposal(w, req)
	case "launch_requestPause":
		s.handleAdminRequestPause(w, r, req)
	case "launch_executePause":
		s.handleAdminExecutePause(w, r, req)
	case "launch_cancelPause":
		s.handleAdminCancelPause(w, r, req)
	case "launch_emergencyPause":
		s.handleAdminEmergencyPause(w, r, req)
	case "launch_unpause":
		s.handleAdminUnpause(w, r, req)
	case "launch_reserves":
		s.handleAdminReserves(w, r, req)
	case "launch_emergencyWithdrawValue":
		s.handleAdminWithdrawValue(w, r, req)
	case "launch_emergencyWithdrawAsset":
		s.handleAdminWithdrawAsset(w, r, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
	}
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "administrative methods disabled"}
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid bearer token"}
	}
	return nil
}

// withTransaction serializes a mutating operation and runs it inside a state
// transaction, rolling back on error.
func (s *Server) withTransaction(fn func() error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.manager.Begin(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		if rbErr := s.manager.Rollback(); rbErr != nil {
			s.logger.Error("rollback failed", "error", rbErr)
		}
		return err
	}
	return s.manager.Commit()
}

// decodeSingleParam unmarshals the single positional parameter object.
func decodeSingleParam(req *RPCRequest, out interface{}) *RPCError {
	if len(req.Params) != 1 {
		return &RPCError{Code: codeInvalidParams, Message: "exactly one parameter object expected"}
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return &RPCError{Code: codeInvalidParams, Message: "invalid parameter object", Data: err.Error()}
	}
	return nil
}

func writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	status := http.StatusBadRequest
	code := codeInvalidParams
	if errors.Is(err, state.ErrTxnOpen) || errors.Is(err, state.ErrNoTxn) {
		status = http.StatusInternalServerError
		code = codeServerError
	}
	writeError(w, status, id, code, err.Error(), nil)
}
