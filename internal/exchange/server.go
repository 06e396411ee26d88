package exchange

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fedsync/fedsync/internal/protocol"
	"github.com/fedsync/fedsync/internal/timebase"
)

const (
	// maxMessageBytes bounds inbound frames. Messages are small JSON
	// envelopes; anything larger is malformed.
	maxMessageBytes = 4096

	// outboundBuffer is the per-connection send queue depth. A federate
	// that cannot drain this many broadcasts is dropped.
	outboundBuffer = 256

	writeTimeout = 10 * time.Second
)

// ServerOption configures the exchange HTTP server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	middlewares []func(http.Handler) http.Handler
	gatherer    prometheus.Gatherer
}

// WithMiddlewares adds middleware to the router.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithMetricsGatherer serves /metrics from the given gatherer instead of
// the global default registry. Pair it with the registry handed to
// NewMetrics.
func WithMetricsGatherer(g prometheus.Gatherer) ServerOption {
	return func(cfg *serverConfig) {
		cfg.gatherer = g
	}
}

// NewServer creates and configures the HTTP router for an exchange.
//
// Routes:
//
//	GET  /healthz        liveness probe
//	GET  /v1/points      barrier status listing
//	POST /v1/points      out-of-band point registration
//	GET  /v1/federation  websocket endpoint for federates
//	GET  /metrics        Prometheus metrics
func NewServer(ex *Exchange, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	r.Get("/healthz", handleHealth(ex))
	r.Get("/v1/points", handleListPoints(ex))
	r.Post("/v1/points", handleRegisterPoint(ex))
	r.Get("/v1/federation", handleFederation(ex))

	if cfg.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.gatherer, promhttp.HandlerOpts{}))
	} else {
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}

	return r
}

// RequestLogger logs HTTP requests at debug level.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

func handleHealth(ex *Exchange) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{
			"status":     "ok",
			"federation": ex.Federation(),
		})
	}
}

func handleListPoints(ex *Exchange) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, ex.Status())
	}
}

type registerRequest struct {
	Federate string `json:"federate"`
	Label    string `json:"label"`
	At       *int64 `json:"at"`
}

// handleRegisterPoint registers a point on behalf of an operator or
// external tool that is not a joined federate.
func handleRegisterPoint(ex *Exchange) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		label := protocol.CanonicalLabel(req.Label)
		if err := protocol.ValidateLabel(label); err != nil {
			respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if req.Federate == "" {
			req.Federate = "external"
		}

		at := timebase.Unscheduled
		if req.At != nil {
			at = timebase.Time(*req.At)
		}
		created := ex.Register(req.Federate, label, at)

		status, _ := ex.StatusOf(label)
		if created {
			respondJSON(w, http.StatusCreated, status)
			return
		}
		respondJSON(w, http.StatusOK, status)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func handleFederation(ex *Exchange) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", "error", err)
			return
		}
		serveFederate(ex, conn)
	}
}

// serveFederate owns one federate connection from hello to disconnect.
//
// Reads happen on this goroutine; writes go through a per-connection
// queue drained by a single writer goroutine, as the websocket package
// allows at most one concurrent writer.
func serveFederate(ex *Exchange, conn *websocket.Conn) {
	defer conn.Close()
	conn.SetReadLimit(maxMessageBytes)

	// The first frame must be a hello naming the federate.
	_, data, err := conn.ReadMessage()
	if err != nil {
		return
	}
	hello, err := protocol.Decode(data)
	if err != nil || hello.Kind != protocol.KindHello {
		writeDirect(conn, protocol.NewError(protocol.CodeBadMessage, "first message must be hello"))
		return
	}
	name := hello.Federate

	out := make(chan protocol.Message, outboundBuffer)
	go writePump(conn, out)
	defer close(out)

	err = ex.Join(name, func(m protocol.Message) {
		select {
		case out <- m:
		default:
			// A federate that stopped draining broadcasts would block the
			// whole federation; drop it instead.
			slog.Warn("outbound queue full, dropping federate", "federate", name)
			conn.Close()
		}
	})
	if err != nil {
		writeDirect(conn, protocol.NewError(protocol.CodeJoinRejected, err.Error()))
		return
	}
	defer ex.Resign(name)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("federate connection lost", "federate", name, "error", err)
			}
			return
		}
		ex.metrics.Messages.Inc()

		msg, err := protocol.Decode(data)
		if err != nil {
			ex.metrics.ProtocolErrors.Inc()
			enqueue(out, protocol.NewError(protocol.CodeBadMessage, err.Error()))
			continue
		}
		if msg.Federate != "" && msg.Federate != name {
			slog.Warn("message federate does not match connection, using connection identity",
				"federate", name,
				"claimed", msg.Federate,
			)
		}

		switch msg.Kind {
		case protocol.KindRegister:
			ex.Register(name, msg.Label, msg.TimeOf())
		case protocol.KindAchieve:
			ex.Achieve(name, msg.Label)
		case protocol.KindResign:
			return
		default:
			ex.metrics.ProtocolErrors.Inc()
			enqueue(out, protocol.NewError(protocol.CodeBadMessage, "unexpected message kind "+string(msg.Kind)))
		}
	}
}

// writePump drains the outbound queue onto the connection. When the queue
// closes it performs the close handshake.
func writePump(conn *websocket.Conn, out <-chan protocol.Message) {
	dead := false
	for m := range out {
		if dead {
			continue
		}
		data, err := protocol.Encode(m)
		if err != nil {
			slog.Error("encode outbound message", "kind", m.Kind, "error", err)
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			// Keep draining so Send never blocks on a dead peer.
			dead = true
		}
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// writeDirect sends one message before the writer goroutine exists.
func writeDirect(conn *websocket.Conn, m protocol.Message) {
	data, err := protocol.Encode(m)
	if err != nil {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = conn.WriteMessage(websocket.TextMessage, data)
}

func enqueue(out chan<- protocol.Message, m protocol.Message) {
	select {
	case out <- m:
	default:
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write response", "error", err)
	}
}
