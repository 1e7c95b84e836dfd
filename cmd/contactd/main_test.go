package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"katydid-common-form/pkg/config"
)

const testConfig = `
server:
  mode: test
forms:
  contact:
    scenarios: [business]
    rules:
      - ["name, email", required]
      - [email, email]
      - [company, required, {on: business}]
      - [phone, required, {except: anonymous}]
`

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return newRouter(cfg, zap.NewNop())
}

func TestRouter(t *testing.T) {
	r := testRouter(t)

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"valid", "/forms/contact", `{"name":"Ann","email":"ann@example.com","phone":"1"}`, http.StatusOK},
		{"form name is case insensitive", "/forms/Contact", `{"name":"Ann","email":"ann@example.com","phone":"1"}`, http.StatusOK},
		{"allowed scenario", "/forms/contact?scenario=business", `{"name":"Ann","email":"ann@example.com","phone":"1"}`, http.StatusUnprocessableEntity},
		{"scenario skipping phone is rejected", "/forms/contact?scenario=anonymous", `{"name":"Ann","email":"ann@example.com"}`, http.StatusBadRequest},
		{"invalid", "/forms/contact", `{"name":"Ann","email":"nope"}`, http.StatusUnprocessableEntity},
		{"unknown form", "/forms/other", `{}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestHealthz(t *testing.T) {
	w := httptest.NewRecorder()
	testRouter(t).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
