package handlers

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jbapex/financeiro-api/middleware"
	"github.com/olahol/melody"
	"github.com/sirupsen/logrus"
)

type WSHandler struct {
	M   *melody.Melody
	log *logrus.Logger
}

// UpdateEvent tells clients which resource to re-fetch.
type UpdateEvent struct {
	Type   string `json:"type"`
	Entity string `json:"entity"`
	Action string `json:"action"`
	ID     string `json:"id,omitempty"`
}

func NewWSHandler(log *logrus.Logger) *WSHandler {
	m := melody.New()

	m.Config.MaxMessageSize = 4096

	// Keep-alive for proxies that drop idle connections
	m.Config.PingPeriod = 30 * time.Second
	m.Config.PongWait = 60 * time.Second

	m.HandleConnect(func(s *melody.Session) {
		tenantID, _ := s.Get("tenant_id")
		log.WithField("tenant_id", tenantID).Debug("websocket connected")
	})

	m.HandleDisconnect(func(s *melody.Session) {
		tenantID, _ := s.Get("tenant_id")
		log.WithField("tenant_id", tenantID).Debug("websocket disconnected")
	})

	m.HandleError(func(s *melody.Session, err error) {
		log.WithError(err).Warn("websocket error")
	})

	return &WSHandler{M: m, log: log}
}

// HandleWS upgrades an authenticated request onto the tenant channel.
func (h *WSHandler) HandleWS(c *gin.Context) {
	keys := map[string]interface{}{
		"tenant_id": middleware.GetTenantID(c),
		"user_id":   middleware.GetUserID(c),
	}
	if err := h.M.HandleRequestWithKeys(c.Writer, c.Request, keys); err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
	}
}

// BroadcastUpdate signals every session of the tenant.
func (h *WSHandler) BroadcastUpdate(tenantID, entity, action, id string) {
	msg, err := json.Marshal(UpdateEvent{Type: "updated", Entity: entity, Action: action, ID: id})
	if err != nil {
		return
	}

	err = h.M.BroadcastFilter(msg, func(q *melody.Session) bool {
		t, exists := q.Get("tenant_id")
		return exists && t == tenantID
	})
	if err != nil {
		h.log.WithError(err).WithField("tenant_id", tenantID).Warn("websocket broadcast failed")
	}
}

func (h *WSHandler) Close() error {
	return h.M.Close()
}
