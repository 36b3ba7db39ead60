package api_test

import (
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/listengraph/internal/migrate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)

	return l
}

// mockProgress is a settable Progress.
type mockProgress struct {
	mu    sync.Mutex
	state migrate.State
	stats migrate.Stats
}

func (m *mockProgress) State() migrate.State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

func (m *mockProgress) Snapshot() migrate.Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.stats
}

// doRequest performs a GET against h and returns the recorder.
func doRequest(h http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	return w
}
