package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/gorilincode/backend/internal/infrastructure/monitoring"
	"github.com/gorilincode/backend/internal/shared/id"
	"github.com/gorilincode/backend/internal/shared/utils"
	"github.com/gorilincode/backend/internal/tutor"
)

const writeWait = 10 * time.Second

// Message types
const (
	TypeRun        = "run"
	TypePlayground = "playground"
	TypePing       = "ping"

	TypeConnected = "connected"
	TypeLog       = "log"
	TypeAlert     = "alert"
	TypeResult    = "result"
	TypeError     = "error"
	TypePong      = "pong"
)

// Inbound is a client frame
type Inbound struct {
	Type string `json:"type"`
	// Ref is echoed on every event of the run so clients can match them
	Ref        string `json:"ref,omitempty"`
	LessonID   int    `json:"lesson_id,omitempty"`
	LearnerID  string `json:"learner_id,omitempty"`
	Workspace  string `json:"workspace,omitempty"`
	Source     string `json:"source,omitempty"`
	TypeScript bool   `json:"typescript,omitempty"`
	Markup     string `json:"markup,omitempty"`
	Style      string `json:"style,omitempty"`
}

// Event is a server frame
type Event struct {
	Type    string `json:"type"`
	Ref     string `json:"ref,omitempty"`
	ConnID  string `json:"conn_id,omitempty"`
	Line    string `json:"line,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Outcome any    `json:"outcome,omitempty"`
}

// Handler streams run events over WebSocket connections
type Handler struct {
	svc      *tutor.Service
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new WebSocket handler. checkOrigin may be nil to
// accept every origin.
func NewHandler(svc *tutor.Service, metrics *monitoring.Metrics, logger *zap.Logger, checkOrigin func(*http.Request) bool) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Handler{
		svc:     svc,
		metrics: metrics,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
	}
}

// conn serialises writes: alert notifications arrive from timer goroutines
type conn struct {
	ws      *websocket.Conn
	id      id.ConnID
	mu      sync.Mutex
	metrics *monitoring.Metrics
	closed  bool
}

func (c *conn) send(ev Event) error {
	data, err := sonic.Marshal(ev)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	if c.metrics != nil {
		c.metrics.RecordWSMessage("out", ev.Type)
	}
	return nil
}

func (c *conn) close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	_ = c.ws.Close()
}

// HandleConnection upgrades the request and serves frames until the client
// goes away
func (h *Handler) HandleConnection(ctx *gin.Context) {
	ws, err := h.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	ws.SetReadLimit(utils.MaxJSONSize)

	c := &conn{ws: ws, id: id.ConnID(uuid.NewString()), metrics: h.metrics}
	defer c.close()

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}
	log := h.logger.With(zap.String("conn_id", c.id.String()))
	log.Debug("Stream connected")

	reqCtx := ctx.Request.Context()
	_ = c.send(Event{Type: TypeConnected, ConnID: c.id.String()})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}

		var msg Inbound
		if err := sonic.Unmarshal(data, &msg); err != nil {
			_ = c.send(Event{Type: TypeError, Error: "invalid message"})
			continue
		}
		if h.metrics != nil {
			h.metrics.RecordWSMessage("in", msg.Type)
		}

		switch msg.Type {
		case TypeRun:
			h.handleRun(reqCtx, c, msg)
		case TypePlayground:
			h.handlePlayground(reqCtx, c, msg)
		case TypePing:
			_ = c.send(Event{Type: TypePong, Ref: msg.Ref})
		default:
			_ = c.send(Event{Type: TypeError, Ref: msg.Ref, Error: "unknown message type"})
		}
	}
}

func (h *Handler) streams(c *conn, ref string) (func(string), func(string)) {
	onLog := func(line string) {
		_ = c.send(Event{Type: TypeLog, Ref: ref, Line: line})
	}
	onAlert := func(message string) {
		_ = c.send(Event{Type: TypeAlert, Ref: ref, Message: message})
	}
	return onLog, onAlert
}

func (h *Handler) handleRun(ctx context.Context, c *conn, msg Inbound) {
	onLog, onAlert := h.streams(c, msg.Ref)
	out, err := h.svc.Run(ctx, tutor.RunRequest{
		LearnerID: msg.LearnerID,
		LessonID:  msg.LessonID,
		Source:    msg.Source,
		Workspace: msg.Workspace,
		OnLog:     onLog,
		OnAlert:   onAlert,
	})
	if err != nil {
		_ = c.send(Event{Type: TypeError, Ref: msg.Ref, Error: clientError(err)})
		return
	}
	_ = c.send(Event{Type: TypeResult, Ref: msg.Ref, Outcome: out})
}

func (h *Handler) handlePlayground(ctx context.Context, c *conn, msg Inbound) {
	onLog, onAlert := h.streams(c, msg.Ref)
	out, err := h.svc.Playground(ctx, tutor.PlaygroundRequest{
		Source:     msg.Source,
		TypeScript: msg.TypeScript,
		Markup:     msg.Markup,
		Style:      msg.Style,
		OnLog:      onLog,
		OnAlert:    onAlert,
	})
	if err != nil {
		_ = c.send(Event{Type: TypeError, Ref: msg.Ref, Error: clientError(err)})
		return
	}
	_ = c.send(Event{Type: TypeResult, Ref: msg.Ref, Outcome: out})
}

func clientError(err error) string {
	switch {
	case errors.Is(err, tutor.ErrLessonNotFound),
		errors.Is(err, tutor.ErrInvalidSource),
		errors.Is(err, tutor.ErrInvalidLearner):
		return err.Error()
	default:
		return "internal error"
	}
}
