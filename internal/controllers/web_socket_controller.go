package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"soldeser/internal/middleware"
	"soldeser/internal/models"
)

// upgrader configures the WebSocket connection.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboard is served from another origin; auth is by token
	},
}

// AttendanceEvent is what supervisors receive on the live feed.
type AttendanceEvent struct {
	Type             string    `json:"type"` // clock_in, clock_out or synced
	RecordID         uint      `json:"record_id"`
	WorkerID         uint      `json:"worker_id"`
	WorksiteID       uint      `json:"worksite_id"` // 0 when no worksite was resolved
	WorksiteName     string    `json:"worksite_name,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
	IsWithinGeofence *bool     `json:"is_within_geofence"`
	DistanceFromSite *int      `json:"distance_from_site"`
}

func eventFromRecord(kind string, r *models.AttendanceRecord) AttendanceEvent {
	ev := AttendanceEvent{
		Type:             kind,
		RecordID:         r.ID,
		WorkerID:         r.UserID,
		Timestamp:        r.Timestamp,
		IsWithinGeofence: r.IsWithinGeofence,
		DistanceFromSite: r.DistanceFromSite,
	}
	if r.WorksiteID != nil {
		ev.WorksiteID = *r.WorksiteID
	}
	if r.Worksite != nil {
		ev.WorksiteName = r.Worksite.Name
	}
	return ev
}

// subscriber is the part of *websocket.Conn the hub writes to.
type subscriber interface {
	WriteJSON(v interface{}) error
}

// AttendanceHub fans attendance events out to subscribed supervisors. Subscribers are
// keyed by worksite id; id 0 receives every event.
type AttendanceHub struct {
	clients   map[uint]map[subscriber]bool
	broadcast chan AttendanceEvent
	mu        sync.Mutex
	closed    bool
	done      chan struct{}
	logger    *logrus.Logger
}

// NewAttendanceHub creates the hub and starts its broadcast loop.
func NewAttendanceHub(logger *logrus.Logger) *AttendanceHub {
	hub := &AttendanceHub{
		clients:   make(map[uint]map[subscriber]bool),
		broadcast: make(chan AttendanceEvent, 100),
		done:      make(chan struct{}),
		logger:    logger,
	}
	go hub.run()
	return hub
}

// run is the only goroutine writing to subscribers, so a connection never sees
// concurrent writes.
func (h *AttendanceHub) run() {
	defer close(h.done)
	for ev := range h.broadcast {
		for _, c := range h.targets(ev.WorksiteID) {
			if err := c.WriteJSON(ev); err != nil {
				if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
					h.logger.WithField("worksite_id", ev.WorksiteID).Info("Client connection closed during broadcast, unregistering.")
				} else {
					h.logger.WithError(err).WithField("worksite_id", ev.WorksiteID).Warn("Failed to send attendance event to client.")
				}
				h.unregisterEverywhere(c)
			}
		}
	}
}

func (h *AttendanceHub) targets(worksiteID uint) []subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []subscriber
	for c := range h.clients[worksiteID] {
		out = append(out, c)
	}
	if worksiteID != 0 {
		for c := range h.clients[0] {
			out = append(out, c)
		}
	}
	return out
}

// Register subscribes conn to events for worksiteID (0 for all worksites).
func (h *AttendanceHub) Register(worksiteID uint, conn subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[worksiteID]; !ok {
		h.clients[worksiteID] = make(map[subscriber]bool)
	}
	h.clients[worksiteID][conn] = true
	h.logger.WithFields(logrus.Fields{
		"worksite_id": worksiteID,
		"conn_ptr":    fmt.Sprintf("%p", conn),
	}).Info("Client registered with AttendanceHub.")
}

// Unregister removes conn from worksiteID.
func (h *AttendanceHub) Unregister(worksiteID uint, conn subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.clients[worksiteID]; ok {
		delete(clients, conn)
		if len(clients) == 0 {
			delete(h.clients, worksiteID)
		}
	}
}

func (h *AttendanceHub) unregisterEverywhere(conn subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, clients := range h.clients {
		delete(clients, conn)
		if len(clients) == 0 {
			delete(h.clients, id)
		}
	}
}

// Publish queues ev without blocking. Events are dropped when the queue is full.
// A nil hub ignores events.
func (h *AttendanceHub) Publish(ev AttendanceEvent) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	select {
	case h.broadcast <- ev:
	default:
		h.logger.WithField("record_id", ev.RecordID).Warn("Attendance broadcast channel full, dropping event.")
	}
}

// Close stops the broadcast loop after draining queued events.
func (h *AttendanceHub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	close(h.broadcast)
	h.mu.Unlock()
	<-h.done
}

// HandleAttendanceWebSocket streams attendance events to supervisors and admins.
// The token comes from the "token" query parameter (browsers cannot set headers on
// WebSocket upgrades) or the Authorization header.
func (h *AttendanceHub) HandleAttendanceWebSocket(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		tokenString = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	}
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authentication token"})
		return
	}
	claims, err := middleware.ValidateToken(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	if claims.Role != models.RoleSupervisor && claims.Role != models.RoleAdmin {
		h.logger.WithFields(logrus.Fields{"user_id": claims.UserID, "role": claims.Role}).Warn("WebSocket connection refused for role")
		c.JSON(http.StatusForbidden, gin.H{"error": "unauthorized role for WebSocket connection"})
		return
	}

	var worksiteID uint
	if raw := c.Query("worksite_id"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid worksite_id"})
			return
		}
		worksiteID = uint(parsed)
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Error("Failed to upgrade WebSocket connection.")
		return
	}
	defer conn.Close()

	h.Register(worksiteID, conn)
	defer h.Unregister(worksiteID, conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				h.logger.WithField("user_id", claims.UserID).Info("Attendance WebSocket closed.")
			} else {
				h.logger.WithError(err).WithField("user_id", claims.UserID).Warn("Error reading from attendance WebSocket")
			}
			return
		}
		// Subscribers only listen; anything they send is ignored.
	}
}
