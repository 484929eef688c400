package create

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/campus-pass/internal/http/middlewarectx"
	"github.com/magabrotheeeer/campus-pass/internal/models"
	"github.com/magabrotheeeer/campus-pass/internal/services/auth"
	"github.com/magabrotheeeer/campus-pass/internal/services/pass"
)

// MockService реализует интерфейс create.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) CreatePass(ctx context.Context, owner pass.Owner, purpose string, passType models.PassType) (models.Pass, error) {
	args := m.Called(ctx, owner, purpose, passType)
	return args.Get(0).(models.Pass), args.Error(1)
}

func TestCreateHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	owner := pass.Owner{ID: "u1", Name: "Alice"}
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	issued := models.Pass{
		ID: "PASS-1", UserID: "u1", UserName: "Alice", Purpose: "Library",
		Type: models.TypeStandard, Status: models.StatusPending,
		CreatedAt: created, ExpiresAt: created.Add(models.PassValidity), QRCode: "data:image/png;base64,AAAA",
	}

	tests := []struct {
		name           string
		body           string
		withSession    bool
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:        "успешный выпуск",
			body:        `{"purpose":"Library"}`,
			withSession: true,
			setupMock: func(m *MockService) {
				m.On("CreatePass", mock.Anything, owner, "Library", models.PassType("")).Return(issued, nil)
			},
			expectedStatus: http.StatusCreated,
			expectedBody:   `"id":"PASS-1"`,
		},
		{
			name:           "без сессии",
			body:           `{"purpose":"Library"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `"error":"unauthorized"`,
		},
		{
			name:           "некорректный JSON",
			body:           `{"purpose":`,
			withSession:    true,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"error":"invalid request body"`,
		},
		{
			name:        "неверное направление",
			body:        `{"purpose":"Moon"}`,
			withSession: true,
			setupMock: func(m *MockService) {
				m.On("CreatePass", mock.Anything, owner, "Moon", models.PassType("")).Return(models.Pass{}, pass.ErrInvalidDestination)
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"Invalid destination category","code":"invalid_destination"}`,
		},
		{
			name:        "уже есть активный пропуск",
			body:        `{"purpose":"Hostel","type":"emergency"}`,
			withSession: true,
			setupMock: func(m *MockService) {
				m.On("CreatePass", mock.Anything, owner, "Hostel", models.TypeEmergency).Return(models.Pass{}, pass.ErrActivePassExists)
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"code":"active_pass_exists"`,
		},
		{
			name:        "ошибка хранилища",
			body:        `{"purpose":"Library"}`,
			withSession: true,
			setupMock: func(m *MockService) {
				m.On("CreatePass", mock.Anything, owner, "Library", models.PassType("")).Return(models.Pass{}, errors.New("disk full"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"error":"internal server error"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)
			handler := New(logger, mockService)

			req := httptest.NewRequest(http.MethodPost, "/api/passes", strings.NewReader(tt.body))
			if tt.withSession {
				req = req.WithContext(middlewarectx.WithSession(req.Context(),
					auth.Session{UserID: "u1", Role: models.RoleUser, Name: "Alice"}))
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			mockService.AssertExpectations(t)
		})
	}
}

func TestCreateHandler_ReturnsBarePass(t *testing.T) {
	mockService := new(MockService)
	mockService.On("CreatePass", mock.Anything, mock.Anything, "Library", models.TypeOneTime).
		Return(models.Pass{ID: "PASS-7", Status: models.StatusPending, Type: models.TypeOneTime}, nil)
	handler := New(slog.New(slog.NewTextHandler(io.Discard, nil)), mockService)

	req := httptest.NewRequest(http.MethodPost, "/api/passes", strings.NewReader(`{"purpose":"Library","type":"one-time"}`))
	req = req.WithContext(middlewarectx.WithSession(req.Context(), auth.Session{UserID: "u1", Role: models.RoleUser}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var got models.Pass
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "PASS-7", got.ID)
	assert.Equal(t, models.TypeOneTime, got.Type)
}
