package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/onnwee/coin-tracker/internal/debounce"
	"github.com/onnwee/coin-tracker/internal/logger"
	"github.com/onnwee/coin-tracker/internal/market"
	"github.com/onnwee/coin-tracker/internal/metrics"
	"github.com/onnwee/coin-tracker/internal/middleware"
	"github.com/onnwee/coin-tracker/internal/utils"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 30 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 512

	sendBuffer = 16
)

// ChartParams identifies one chart series.
type ChartParams struct {
	ID     string        `json:"id"`
	Days   int           `json:"days"`
	Metric market.Metric `json:"metric"`
}

// clientMessage is what the browser sends. Omitted fields keep their value.
type clientMessage struct {
	Type   string `json:"type"`
	ID     string `json:"id,omitempty"`
	Days   int    `json:"days,omitempty"`
	Metric string `json:"metric,omitempty"`
}

// ChartMessage is pushed to the client: either a series or an error.
type ChartMessage struct {
	Type              string        `json:"type"` // "series" or "error"
	ID                string        `json:"id,omitempty"`
	Days              int           `json:"days,omitempty"`
	Metric            market.Metric `json:"metric,omitempty"`
	Series            market.Series `json:"series,omitempty"`
	Message           string        `json:"message,omitempty"`
	Code              string        `json:"code,omitempty"`
	Retryable         bool          `json:"retryable,omitempty"`
	RetryAfterSeconds int           `json:"retry_after_seconds,omitempty"`
}

// merge applies a client update on top of the current parameters.
func (p ChartParams) merge(m clientMessage) (ChartParams, error) {
	if m.ID != "" {
		id := utils.NormalizeCoinID(m.ID)
		if !utils.IsValidCoinID(id) {
			return p, errors.New("invalid coin id")
		}
		p.ID = id
	}
	if m.Days != 0 {
		if !market.ValidDays(m.Days) {
			return p, errors.New("unsupported day range")
		}
		p.Days = m.Days
	}
	if m.Metric != "" {
		metric, err := market.ParseMetric(m.Metric)
		if err != nil {
			return p, err
		}
		p.Metric = metric
	}
	return p, nil
}

// ChartSocket serves GET /ws/chart. Each connection owns a debounce
// controller so a burst of range or metric changes costs one upstream call
// and only the newest series reaches the socket.
type ChartSocket struct {
	source   market.Source
	window   time.Duration
	upgrader websocket.Upgrader
}

// NewChartSocket uses the surface policy source; failures are pushed as
// retryable error messages.
func NewChartSocket(source market.Source, window time.Duration, allowedOrigins []string) *ChartSocket {
	return &ChartSocket{
		source: source,
		window: window,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return middleware.OriginAllowed(r.Header.Get("Origin"), allowedOrigins)
			},
		},
	}
}

// chartSession is one connected client.
type chartSession struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	log  *slog.Logger
}

func (s *chartSession) push(msg ChartMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.log.Warn("failed to marshal chart message", "error", err)
		return
	}
	select {
	case s.send <- data:
	case <-s.done:
	default:
		s.log.Warn("chart send buffer full, dropping message", "type", msg.Type)
	}
}

func errorMessage(err error) ChartMessage {
	var me *market.Error
	if errors.As(err, &me) {
		msg := ChartMessage{Type: "error", Message: me.Message, Code: me.Kind.String(), Retryable: me.Retryable()}
		if me.RetryAfter > 0 {
			msg.RetryAfterSeconds = int(math.Ceil(me.RetryAfter.Seconds()))
		}
		return msg
	}
	return ChartMessage{Type: "error", Message: "unable to load chart data", Code: "internal", Retryable: true}
}

// Handle upgrades the connection. The initial parameters come from the
// query string and are fetched immediately; later changes are debounced.
func (h *ChartSocket) Handle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id, aerr := coinID(q.Get("id"))
	if aerr != nil {
		writeAPIError(w, r, aerr)
		return
	}
	days, metric, aerr := chartParams(r)
	if aerr != nil {
		writeAPIError(w, r, aerr)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		logger.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	metrics.WebSocketConnections.Inc()
	defer metrics.WebSocketConnections.Dec()

	s := &chartSession{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
		log:  logger.ForComponent(r.Context(), "ws"),
	}

	// fetches must not outlive the connection; r.Context() is not reliable
	// after a hijack
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	ctrl := debounce.New(h.window,
		func(ctx context.Context, p ChartParams) (market.Series, error) {
			return h.source.PriceHistory(ctx, p.ID, p.Days, p.Metric)
		},
		func(o debounce.Outcome[ChartParams, market.Series]) {
			if o.Err != nil {
				if market.IsCancelled(o.Err) {
					return
				}
				msg := errorMessage(o.Err)
				msg.ID, msg.Days, msg.Metric = o.Params.ID, o.Params.Days, o.Params.Metric
				s.push(msg)
				return
			}
			s.push(ChartMessage{Type: "series", ID: o.Params.ID, Days: o.Params.Days, Metric: o.Params.Metric, Series: o.Result})
		},
		debounce.WithContext(ctx),
	)
	defer ctrl.Close()

	s.log.Debug("chart session opened", "id", id, "days", days, "metric", metric)
	go s.writePump()

	current := ChartParams{ID: id, Days: days, Metric: metric}
	ctrl.Submit(current)
	ctrl.Flush()

	s.readPump(func(m clientMessage) {
		switch strings.ToLower(m.Type) {
		case "params":
			next, err := current.merge(m)
			if err != nil {
				s.push(ChartMessage{Type: "error", Message: err.Error(), Code: "invalid_params"})
				return
			}
			current = next
			ctrl.Submit(current)
		case "refresh":
			ctrl.Submit(current)
			ctrl.Flush()
		default:
			s.push(ChartMessage{Type: "error", Message: "unknown message type", Code: "invalid_params"})
		}
	})
	close(s.done)
	s.log.Debug("chart session closed", "id", current.ID)
}

// readPump delivers client messages until the connection fails or closes.
func (s *chartSession) readPump(handle func(clientMessage)) {
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.log.Warn("websocket unexpected close", "error", err)
			}
			return
		}
		var m clientMessage
		if err := json.Unmarshal(data, &m); err != nil {
			s.push(ChartMessage{Type: "error", Message: "invalid JSON message", Code: "invalid_params"})
			continue
		}
		handle(m)
	}
}

// writePump is the only writer on the connection.
func (s *chartSession) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case data := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
			metrics.WebSocketMessagesSent.Inc()
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
