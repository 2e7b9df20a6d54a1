package routes

import (
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"attendance-backend/internal/clock"
	"attendance-backend/internal/config"
	"attendance-backend/internal/notify"
)

func registerTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	Register(router, Deps{
		Cfg:   config.Config{JwtSecret: "test-secret", UploadDir: t.TempDir()},
		Clock: clock.New(time.UTC),
		Hub:   notify.NewHub(),
	})
	return router
}

func TestRegisterRoutes(t *testing.T) {
	router := registerTestRouter(t)

	routes := map[string]bool{}
	for _, r := range router.Routes() {
		routes[r.Method+" "+r.Path] = true
	}

	// Session reads live outside the teacher group so students can see the
	// sessions for their class; writes stay teacher-only.
	shared := []string{
		"GET /api/sessions",
		"GET /api/sessions/:id",
		"GET /api/sessions/:id/qr",
	}
	for _, want := range shared {
		if !routes[want] {
			t.Errorf("route %s not registered", want)
		}
	}

	teacherOnly := []string{
		"POST /api/teacher/sessions",
		"PUT /api/teacher/sessions/:id",
		"DELETE /api/teacher/sessions/:id",
	}
	for _, want := range teacherOnly {
		if !routes[want] {
			t.Errorf("route %s not registered", want)
		}
	}

	if routes["POST /api/sessions"] {
		t.Errorf("session creation must not be exposed outside the teacher group")
	}
}
