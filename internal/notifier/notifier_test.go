package notifier

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTelegram(t *testing.T, handler http.HandlerFunc) *TelegramNotifier {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	n := NewTelegramNotifier("TOKEN", "42", "", 3, time.Millisecond)
	n.BaseURL = srv.URL
	return n
}

func TestTelegramNotifier_Send(t *testing.T) {
	var gotPath, gotChat, gotText string
	n := newTestTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotPath = r.URL.Path
		gotChat = r.PostForm.Get("chat_id")
		gotText = r.PostForm.Get("text")
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, n.Send("AAPL RSI(14) 72.31 entered overbought"))
	assert.Equal(t, "/botTOKEN/sendMessage", gotPath)
	assert.Equal(t, "42", gotChat)
	assert.Equal(t, "AAPL RSI(14) 72.31 entered overbought", gotText)
}

func TestTelegramNotifier_SendWithRetry(t *testing.T) {
	var calls atomic.Int32
	n := newTestTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, n.SendWithRetry("hello"))
	assert.Equal(t, int32(3), calls.Load())
}

func TestTelegramNotifier_SendWithRetryGivesUp(t *testing.T) {
	var calls atomic.Int32
	n := newTestTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	err := n.SendWithRetry("hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(3), calls.Load())
}

func TestTelegramNotifier_TransportErrorHidesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	n := NewTelegramNotifier("123456:SECRET-TOKEN", "42", "", 2, time.Millisecond)
	n.BaseURL = srv.URL

	err := n.Send("hello")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRET-TOKEN")
	assert.Contains(t, err.Error(), "bot<redacted>/sendMessage")

	err = n.SendWithRetry("hello")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRET-TOKEN")
}

func TestLogNotifier(t *testing.T) {
	var n Notifier = NewLogNotifier()
	assert.NoError(t, n.Send("hello"))
	assert.NoError(t, n.SendWithRetry("hello"))
}
