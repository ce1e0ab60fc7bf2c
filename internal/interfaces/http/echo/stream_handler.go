package echo

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/leadflow/lead-import/internal/application/progress"
	domain "github.com/leadflow/lead-import/internal/domain/lead"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxClientFrame = 4096
)

type streamMessage struct {
	Type    string           `json:"type"`
	Entries []progress.Entry `json:"entries"`
}

type clientMessage struct {
	Type  string `json:"type"`
	JobID string `json:"job_id"`
}

// StreamHandler serves a team's import progress over a websocket. Each
// connection owns its own notifier, so dismissals stay local to it.
type StreamHandler struct {
	lister     progress.JobLister
	subscriber domain.JobChangeSubscriber
	cfg        progress.Config
	upgrader   websocket.Upgrader
	log        *logrus.Entry
}

func NewStreamHandler(lister progress.JobLister, subscriber domain.JobChangeSubscriber, cfg progress.Config, checkOrigin func(r *http.Request) bool) *StreamHandler {
	log := cfg.Logger
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = logrus.NewEntry(l)
	}
	return &StreamHandler{
		lister:     lister,
		subscriber: subscriber,
		cfg:        cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		log: log.WithField("component", "progress_stream"),
	}
}

func (h *StreamHandler) Stream(c echo.Context) error {
	teamID := strings.TrimSpace(c.QueryParam("team_id"))
	if teamID == "" {
		return fail(c, http.StatusBadRequest, "invalid_team_id", "team_id is required")
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already replied
		h.log.WithError(err).Debug("websocket upgrade failed")
		return nil
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifier := progress.New(teamID, h.lister, h.subscriber, h.cfg)
	go func() {
		_ = notifier.Run(ctx)
	}()
	go h.readLoop(conn, notifier, cancel)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return nil
		case <-notifier.Updates():
			entries := notifier.Entries()
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(streamMessage{Type: "progress", Entries: entries}); err != nil {
				h.log.WithError(err).WithField("team_id", teamID).Debug("progress write failed")
				return nil
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return nil
			}
		}
	}
}

// readLoop applies dismiss requests and cancels the stream once the client
// goes away.
func (h *StreamHandler) readLoop(conn *websocket.Conn, notifier *progress.Notifier, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(maxClientFrame)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Type == "dismiss" && msg.JobID != "" {
			notifier.Dismiss(msg.JobID)
		}
	}
}
