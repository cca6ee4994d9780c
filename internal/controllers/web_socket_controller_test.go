package controllers

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soldeser/internal/middleware"
	"soldeser/internal/models"
)

func quietHub(t *testing.T) *AttendanceHub {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	hub := NewAttendanceHub(log)
	t.Cleanup(hub.Close)
	return hub
}

func (h *AttendanceHub) subscriberCount(worksiteID uint) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[worksiteID])
}

type brokenSubscriber struct{}

func (brokenSubscriber) WriteJSON(interface{}) error { return errors.New("broken pipe") }

func TestAttendanceHub_RoutesByWorksite(t *testing.T) {
	hub := quietHub(t)
	all, siteFive, siteSix := &recorder{}, &recorder{}, &recorder{}
	hub.Register(0, all)
	hub.Register(5, siteFive)
	hub.Register(6, siteSix)

	hub.Publish(AttendanceEvent{Type: "clock_in", RecordID: 1, WorksiteID: 5})
	hub.Publish(AttendanceEvent{Type: "clock_in", RecordID: 2})

	assert.Eventually(t, func() bool { return len(all.Events()) == 2 }, time.Second, 10*time.Millisecond)
	assert.Len(t, siteFive.Events(), 1)
	assert.Empty(t, siteSix.Events())
}

func TestAttendanceHub_DropsFailingSubscriber(t *testing.T) {
	hub := quietHub(t)
	hub.Register(0, brokenSubscriber{})
	hub.Register(3, brokenSubscriber{})

	hub.Publish(AttendanceEvent{Type: "clock_out", WorksiteID: 3})
	assert.Eventually(t, func() bool {
		return hub.subscriberCount(0) == 0 && hub.subscriberCount(3) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestAttendanceHub_NilAndClosed(t *testing.T) {
	var nilHub *AttendanceHub
	nilHub.Publish(AttendanceEvent{})

	hub := quietHub(t)
	hub.Close()
	hub.Publish(AttendanceEvent{})
}

func TestHandleAttendanceWebSocket(t *testing.T) {
	middleware.Configure("ws-secret", time.Hour)
	hub := quietHub(t)

	r := gin.New()
	r.GET("/ws/attendance", hub.HandleAttendanceWebSocket)
	srv := httptest.NewServer(r)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/attendance"

	t.Run("worker refused", func(t *testing.T) {
		token, err := middleware.GenerateToken(9, models.RoleWorker)
		require.NoError(t, err)
		_, resp, err := websocket.DefaultDialer.Dial(wsURL+"?token="+token, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("missing token", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("supervisor receives events for its worksite", func(t *testing.T) {
		token, err := middleware.GenerateToken(2, models.RoleSupervisor)
		require.NoError(t, err)
		conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?worksite_id=5&token="+token, nil)
		require.NoError(t, err)
		defer conn.Close()

		require.Eventually(t, func() bool { return hub.subscriberCount(5) == 1 }, time.Second, 10*time.Millisecond)
		hub.Publish(AttendanceEvent{Type: "clock_in", RecordID: 41, WorksiteID: 6})
		hub.Publish(AttendanceEvent{Type: "clock_in", RecordID: 42, WorksiteID: 5, WorksiteName: "Obra Sol"})

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var ev AttendanceEvent
		require.NoError(t, conn.ReadJSON(&ev))
		assert.Equal(t, uint(42), ev.RecordID)
		assert.Equal(t, "Obra Sol", ev.WorksiteName)
	})
}

func TestEventFromRecord(t *testing.T) {
	site := uint(3)
	within := true
	ev := eventFromRecord("clock_in", &models.AttendanceRecord{
		UserID:           7,
		WorksiteID:       &site,
		Worksite:         &models.Worksite{Name: "Obra Sol"},
		IsWithinGeofence: &within,
	})
	assert.Equal(t, uint(7), ev.WorkerID)
	assert.Equal(t, uint(3), ev.WorksiteID)
	assert.Equal(t, "Obra Sol", ev.WorksiteName)

	ev = eventFromRecord("synced", &models.AttendanceRecord{UserID: 7})
	assert.Zero(t, ev.WorksiteID)
}
