package routes

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"soldeser/internal/controllers"
)

func TestSetupRouter_Routes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetOutput(io.Discard)
	hub := controllers.NewAttendanceHub(log)
	defer hub.Close()

	r := SetupRouter(Deps{
		Auth:      &controllers.AuthController{},
		Clock:     &controllers.ClockController{},
		Sync:      &controllers.SyncController{},
		Worksites: &controllers.WorksiteController{},
		Export:    &controllers.ExportController{},
		Admin:     &controllers.AdminController{},
		Hub:       hub,
	})

	registered := map[string]bool{}
	for _, route := range r.Routes() {
		registered[route.Method+" "+route.Path] = true
	}
	for _, want := range []string{
		"POST /auth/signup",
		"POST /auth/login",
		"POST /clock/in",
		"POST /clock/out",
		"GET /clock/status",
		"GET /clock/history",
		"GET /clock/today",
		"POST /sync/clock-records",
		"GET /sync/status",
		"GET /sync/worksites",
		"GET /worksites",
		"POST /worksites",
		"DELETE /worksites/:id",
		"POST /worksites/:id/assignments",
		"DELETE /worksites/:id/assignments/:userId",
		"GET /worksites/:id/workers",
		"GET /worksites/:id/clock-records",
		"GET /export/clock-records/xlsx",
		"POST /admin/users",
		"GET /admin/active-workers",
		"GET /admin/attendance-report",
		"GET /ws/attendance",
		"GET /health",
	} {
		assert.True(t, registered[want], want)
	}
}

func TestSetupRouter_ProtectedWithoutToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := SetupRouter(Deps{
		Auth:      &controllers.AuthController{},
		Clock:     &controllers.ClockController{},
		Sync:      &controllers.SyncController{},
		Worksites: &controllers.WorksiteController{},
		Export:    &controllers.ExportController{},
		Admin:     &controllers.AdminController{},
	})

	for _, path := range []string{"/clock/status", "/sync/worksites", "/export/clock-records/xlsx", "/worksites/1/workers", "/admin/active-workers", "/admin/attendance-report"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
