package spark

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(ClientConfig{BaseURL: srv.URL, AccessToken: "token", Logger: quietLogger()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c, srv
}

func roomJSON(id, title string) string {
	return fmt.Sprintf(`{"id":%q,"title":%q,"type":"group","isLocked":false,"created":"2026-01-02T03:04:05Z"}`, id, title)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}
