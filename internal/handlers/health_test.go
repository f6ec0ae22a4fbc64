package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"filechat-ai/internal/service"
	service_mocks "filechat-ai/internal/service/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestHealthHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name           string
		checks         map[string]HealthCheck
		expectedStatus int
		expectedHealth string
		expectedIssues []string
	}{
		{
			name:           "no dependencies",
			expectedStatus: http.StatusOK,
			expectedHealth: "healthy",
		},
		{
			name: "vector store reachable",
			checks: map[string]HealthCheck{
				"vector_store": func(context.Context) error { return nil },
			},
			expectedStatus: http.StatusOK,
			expectedHealth: "healthy",
		},
		{
			name: "vector store down",
			checks: map[string]HealthCheck{
				"vector_store": func(context.Context) error { return errors.New("connection refused") },
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedHealth: "unhealthy",
			expectedIssues: []string{"vector_store_unavailable"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockSession := service_mocks.NewMockSessionService(ctrl)
			mockSession.EXPECT().Status().Return(service.Status{State: service.StateEmpty})

			handler := NewHealthHandler(mockSession, tt.checks)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			var resp HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.expectedHealth, resp.Status)
			assert.Equal(t, service.StateEmpty, resp.Session)
			assert.Equal(t, tt.expectedIssues, resp.Issues)
			assert.Len(t, resp.Checks, len(tt.checks))
		})
	}
}

func TestHealthHandler_MethodNotAllowed(t *testing.T) {
	ctrl := gomock.NewController(t)
	handler := NewHealthHandler(service_mocks.NewMockSessionService(ctrl), nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/health", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
