package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"docchat/internal/retrieval"
)

type MockAnswerer struct{ mock.Mock }

func (m *MockAnswerer) Answer(ctx context.Context, question string) (string, error) {
	args := m.Called(ctx, question)
	return args.String(0), args.Error(1)
}

func TestHandler_Ask(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setupMock  func(*MockAnswerer)
		wantStatus int
		checkBody  func(*testing.T, map[string]interface{})
	}{
		{
			name: "Success",
			body: `{"question":"what is in the report?"}`,
			setupMock: func(a *MockAnswerer) {
				a.On("Answer", mock.Anything, "what is in the report?").Return("the answer", nil)
			},
			wantStatus: http.StatusOK,
			checkBody: func(t *testing.T, body map[string]interface{}) {
				data := body["data"].(map[string]interface{})
				assert.Equal(t, "the answer", data["answer"])
			},
		},
		{
			name: "Refusal Is A Normal Response",
			body: `{"question":"unrelated question"}`,
			setupMock: func(a *MockAnswerer) {
				a.On("Answer", mock.Anything, "unrelated question").Return(retrieval.Refusal, nil)
			},
			wantStatus: http.StatusOK,
			checkBody: func(t *testing.T, body map[string]interface{}) {
				data := body["data"].(map[string]interface{})
				assert.Equal(t, retrieval.Refusal, data["answer"])
			},
		},
		{
			name:       "Missing Question",
			body:       `{"question":"  "}`,
			setupMock:  func(a *MockAnswerer) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Invalid JSON",
			body:       `{"question"`,
			setupMock:  func(a *MockAnswerer) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "Search Failure Halts Turn",
			body: `{"question":"q"}`,
			setupMock: func(a *MockAnswerer) {
				a.On("Answer", mock.Anything, "q").Return("", errors.New("store unreachable"))
			},
			wantStatus: http.StatusInternalServerError,
			checkBody: func(t *testing.T, body map[string]interface{}) {
				assert.NotNil(t, body["error"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answerer := new(MockAnswerer)
			tt.setupMock(answerer)

			h := NewHandler(answerer)
			req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			h.Ask(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.checkBody != nil {
				var body map[string]interface{}
				assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				tt.checkBody(t, body)
			}
			answerer.AssertExpectations(t)
		})
	}
}
