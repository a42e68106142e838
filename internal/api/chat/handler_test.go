package chat

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/isntboxs/b3s-chat/internal/config"
	"github.com/isntboxs/b3s-chat/internal/domain"
	"github.com/isntboxs/b3s-chat/internal/service"
)

type scriptedOpener struct {
	raw string
}

func (o *scriptedOpener) OpenStream(context.Context, domain.ChatRequest) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(o.raw)), nil
}

func newTestRouter(t *testing.T, opener service.StreamOpener) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	catalog, err := service.NewModelCatalog([]config.ModelConfig{
		{ID: "test-model", DisplayName: "Test Model", Provider: "ollama"},
	}, "test-model")
	require.NoError(t, err)

	chatService := service.NewChatService(nil, opener, catalog, zap.NewNop())

	router := gin.New()
	NewHandler(chatService).RegisterRoutes(router.Group("/api"))
	return router
}

// closeNotifyRecorder adds the CloseNotify method that gin's Stream
// requires but httptest.ResponseRecorder does not implement.
type closeNotifyRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (c *closeNotifyRecorder) CloseNotify() <-chan bool { return c.closed }

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	router.ServeHTTP(&closeNotifyRecorder{w, make(chan bool, 1)}, req)
	return w
}

func TestListModels(t *testing.T) {
	router := newTestRouter(t, &scriptedOpener{})

	w := doRequest(router, http.MethodGet, "/api/models", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test-model")
	assert.Contains(t, w.Body.String(), "ollama.svg")
}

func TestChatStream_RelaysEvents(t *testing.T) {
	opener := &scriptedOpener{raw: "data: {\"content\":\"Hi\"}\n\n" +
		"data: {\"content\":\" there\"}\n\n" +
		"data: {\"done\":true}\n\n"}
	router := newTestRouter(t, opener)

	w := doRequest(router, http.MethodPost, "/api/chat/s1/stream", `{"message":"hello"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, `data: {"content":"Hi"}`)
	assert.Contains(t, body, `data: {"content":" there"}`)
	assert.Contains(t, body, `data: {"done":true}`)
	assert.True(t, strings.HasSuffix(body, "data: [DONE]\n\n"))
}

func TestChatStream_ErrorEventWithoutDoneSentinel(t *testing.T) {
	opener := &scriptedOpener{raw: "data: {\"error\":\"model exploded\"}\n\n"}
	router := newTestRouter(t, opener)

	w := doRequest(router, http.MethodPost, "/api/chat/s1/stream", `{"message":"hello"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `data: {"error":"model exploded"}`)
	assert.NotContains(t, body, "[DONE]")
}

func TestChatStream_EmptyMessageIsNoContent(t *testing.T) {
	router := newTestRouter(t, &scriptedOpener{})

	w := doRequest(router, http.MethodPost, "/api/chat/s1/stream", `{"message":"   "}`)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestChatStream_BadBody(t *testing.T) {
	router := newTestRouter(t, &scriptedOpener{})

	w := doRequest(router, http.MethodPost, "/api/chat/s1/stream", `{not json`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegenerate_WithoutExchangeIsNoContent(t *testing.T) {
	router := newTestRouter(t, &scriptedOpener{})

	w := doRequest(router, http.MethodPost, "/api/chat/s1/regenerate", "")

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRegenerate_ReplaysLastExchange(t *testing.T) {
	opener := &scriptedOpener{raw: "data: {\"content\":\"answer\",\"done\":true}\n\n"}
	router := newTestRouter(t, opener)

	w := doRequest(router, http.MethodPost, "/api/chat/s1/stream", `{"message":"question"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodPost, "/api/chat/s1/regenerate", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `data: {"content":"answer"}`)
}

func TestCancel_AlwaysOK(t *testing.T) {
	router := newTestRouter(t, &scriptedOpener{})

	w := doRequest(router, http.MethodPost, "/api/chat/s1/cancel", "")

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateSession_HistoryDisabled(t *testing.T) {
	router := newTestRouter(t, &scriptedOpener{})

	w := doRequest(router, http.MethodPost, "/api/sessions", `{"user_id":"u1"}`)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStats_HistoryDisabled(t *testing.T) {
	router := newTestRouter(t, &scriptedOpener{})

	w := doRequest(router, http.MethodGet, "/api/stats", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_sessions":0`)
}
