package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"marketledger/core/types"
	"marketledger/observability"
	"marketledger/observability/logging"
	"marketledger/rpc/modules"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	requestIDHeader = "X-Request-ID"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
)

// ServerConfig tunes the JSON-RPC server.
type ServerConfig struct {
	JWT               JWTConfig
	RequestsPerMinute float64
	Burst             int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	Logger            *slog.Logger
	// Hub serves /ws/events when set. It must also be registered with the
	// engine's emitter.
	Hub *EventHub
	// Tracing wraps the router with otelhttp spans and server metrics.
	Tracing bool
}

type Server struct {
	cfg     ServerConfig
	logger  *slog.Logger
	routes  map[string]route
	auth    *authenticator
	limiter *rateLimiter
	hub     *EventHub
	handler http.Handler

	serverMu   sync.Mutex
	httpServer *http.Server
}

// NewServer wires the market and event modules behind a JSON-RPC endpoint.
// Either module may be nil, in which case its methods report unavailable.
func NewServer(market *modules.MarketModule, events *modules.EventsModule, cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		routes:  buildRoutes(market, events),
		auth:    newAuthenticator(cfg.JWT),
		limiter: newRateLimiter(cfg.RequestsPerMinute, cfg.Burst),
		hub:     cfg.Hub,
	}
	r := chi.NewRouter()
	r.Use(requestID)
	r.Post("/", s.handle)
	r.Get("/ws/events", s.handleEventStream)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.handler = r
	if cfg.Tracing {
		s.handler = otelhttp.NewHandler(r, "marketd-rpc")
	}
	return s
}

// Handler exposes the router for embedding and tests.
func (s *Server) Handler() http.Handler { return s.handler }

// Serve accepts connections on listener until Shutdown is called.
func (s *Server) Serve(listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
	s.serverMu.Lock()
	s.httpServer = srv
	s.serverMu.Unlock()
	s.logger.Info("json-rpc server listening", slog.String("addr", listener.Addr().String()))
	return srv.Serve(listener)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.serverMu.Lock()
	srv := s.httpServer
	s.serverMu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
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

func writeModuleError(w http.ResponseWriter, id interface{}, err *modules.ModuleError) {
	if err == nil {
		writeError(w, http.StatusInternalServerError, id, codeServerError, "unknown error", nil)
		return
	}
	writeError(w, err.HTTPStatus, id, err.Code, err.Message, err.Data)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}
	rt, ok := s.routes[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return
	}
	if len(req.Params) > 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "too many parameters", nil)
		return
	}

	var caller types.Address
	source := clientSource(r)
	if rt.auth {
		addr, authErr := s.auth.caller(r)
		if authErr != nil {
			s.observe(r, rt, req.Method, authErr.Code, time.Time{},
				slog.String("authorization", logging.MaskBearer(r.Header.Get("Authorization"))),
				slog.String("reason", authErr.Message))
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		caller = addr
		source = addr.Hex()
	}
	if !s.limiter.allow(source) {
		observability.ModuleMetrics().RecordThrottle(rt.module, "rate_limit")
		writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limit exceeded", nil)
		return
	}

	var raw json.RawMessage
	if len(req.Params) == 1 {
		raw = req.Params[0]
	}
	start := time.Now()
	result, modErr := rt.handler(caller, raw)
	if modErr != nil {
		s.observe(r, rt, req.Method, modErr.Code, start)
		writeModuleError(w, req.ID, modErr)
		return
	}
	s.observe(r, rt, req.Method, 0, start)
	writeResult(w, req.ID, result)
}

func (s *Server) observe(r *http.Request, rt route, method string, code int, start time.Time, extra ...slog.Attr) {
	var elapsed time.Duration
	if !start.IsZero() {
		elapsed = time.Since(start)
	}
	observability.ModuleMetrics().Observe(rt.module, method, code, elapsed)
	level := slog.LevelDebug
	if code != 0 {
		level = slog.LevelWarn
	}
	attrs := []slog.Attr{
		slog.String("request_id", requestIDFrom(r.Context())),
		slog.String("method", method),
		slog.Int("code", code),
		slog.Duration("duration", elapsed),
	}
	s.logger.LogAttrs(r.Context(), level, "rpc request", append(attrs, extra...)...)
}

type requestIDKey struct{}

// requestID tags every request with an id, honouring a caller-supplied one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
