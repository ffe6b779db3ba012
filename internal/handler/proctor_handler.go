package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/proctorly/examroom/internal/middleware"
	"github.com/proctorly/examroom/internal/protocol"
	"github.com/proctorly/examroom/internal/service"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsReadTimeout  = 5 * time.Minute
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allow-list permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// ProctorHandler streams violation samples over the proctoring channel.
type ProctorHandler struct {
	proctorService *service.ProctorService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewProctorHandler creates a new ProctorHandler.
func NewProctorHandler(proctorService *service.ProctorService, log zerolog.Logger, allowedOrigins []string) *ProctorHandler {
	return &ProctorHandler{
		proctorService: proctorService,
		log:            log.With().Str("component", "proctor_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// Stream godoc
// WS /ws/v1/exams/:exam_id/proctor
// Upgrades to WebSocket for the live sample stream. Every confirmed
// violation is answered with a warning_alert push; crossing the warning
// ceiling closes the session with exam_terminated.
func (h *ProctorHandler) Stream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Str("session_id", claims.SessionID).
		Str("exam_id", claims.ExamID).
		Logger()

	wsLog.Info().Msg("Proctor channel connected")

	for {
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Channel closed")
			}
			return
		}

		var env protocol.RequestEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			h.writeEvent(conn, protocol.ErrorEvent("malformed message"))
			continue
		}

		switch env.Action {
		case protocol.ActionSample:
			if terminated := h.handleSample(c, conn, wsLog, claims, raw); terminated {
				return
			}
		case protocol.ActionSessionEnded:
			wsLog.Info().Msg("Session ended by client")
			return
		default:
			wsLog.Warn().Str("action", string(env.Action)).Msg("Unknown action")
			h.writeEvent(conn, protocol.ErrorEvent("unknown action: "+string(env.Action)))
		}
	}
}

// handleSample runs one sample through the escalation policy. It reports
// whether the session was terminated, which ends the stream.
func (h *ProctorHandler) handleSample(c *gin.Context, conn *websocket.Conn, wsLog zerolog.Logger, claims *service.Claims, raw []byte) bool {
	var req protocol.SampleRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		h.writeEvent(conn, protocol.ErrorEvent("malformed sample"))
		return false
	}

	ev, err := h.proctorService.HandleSample(c.Request.Context(), claims.SessionID, claims.ExamID, req.Sample())
	if err != nil {
		wsLog.Error().Err(err).Msg("Sample handling failed")
		h.writeEvent(conn, protocol.ErrorEvent("sample processing failed"))
		return false
	}
	if ev == nil {
		return false
	}

	h.writeEvent(conn, *ev)
	return ev.Event == protocol.EventTerminated
}

func (h *ProctorHandler) writeEvent(conn *websocket.Conn, ev protocol.EventEnvelope) {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(ev); err != nil {
		h.log.Debug().Err(err).Msg("Event write failed")
	}
}
