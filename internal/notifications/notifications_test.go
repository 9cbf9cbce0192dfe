package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestTelegramNotifier_PostsMessage(t *testing.T) {
	var gotPath, gotChat, gotText string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = r.ParseForm()
		gotChat = r.PostForm.Get("chat_id")
		gotText = r.PostForm.Get("text")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewTelegramNotifier("TOKEN", "42").WithBaseURL(server.URL + "/")
	require.NoError(t, n.Notify(context.Background(), "BUY BTCUSDT", "price 100"))

	assert.Equal(t, "/botTOKEN/sendMessage", gotPath)
	assert.Equal(t, "42", gotChat)
	assert.Contains(t, gotText, "*BUY BTCUSDT*")
	assert.Contains(t, gotText, "price 100")
}

func TestTelegramNotifier_ReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	err := NewTelegramNotifier("bad", "1").WithBaseURL(server.URL).Notify(context.Background(), "x", "y")
	assert.ErrorContains(t, err, "401")
}

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaNotifier_PublishesJSONEvent(t *testing.T) {
	w := &fakeWriter{}
	n := newKafkaNotifier(w)
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	n.now = func() time.Time { return at }

	require.NoError(t, n.Notify(context.Background(), "SELL ETHUSDT", "take profit"))
	require.Len(t, w.messages, 1)
	assert.Equal(t, "SELL ETHUSDT", string(w.messages[0].Key))

	var event Event
	require.NoError(t, json.Unmarshal(w.messages[0].Value, &event))
	assert.Equal(t, Event{Subject: "SELL ETHUSDT", Body: "take profit", Time: at}, event)

	w.err = errors.New("broker unavailable")
	assert.Error(t, n.Notify(context.Background(), "a", "b"))
	assert.NoError(t, n.Close())
}

func TestDispatcher_FansOutAndLogsFailures(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	var mu sync.Mutex
	var received []string
	ok := NotifierFunc(func(_ context.Context, subject, body string) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, subject+": "+body)
		return nil
	})
	failing := NotifierFunc(func(context.Context, string, string) error {
		return errors.New("telegram down")
	})

	d := NewDispatcher(zap.New(core), time.Second, ok, failing)
	assert.Equal(t, 2, d.Len())
	d.Notify("BUY BTCUSDT", "qty 0.01")
	d.Wait()

	assert.Equal(t, []string{"BUY BTCUSDT: qty 0.01"}, received)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "notification failed", logs.All()[0].Message)
}

func TestDispatcher_DoesNotBlockOnSlowNotifier(t *testing.T) {
	release := make(chan struct{})
	slow := NotifierFunc(func(ctx context.Context, _, _ string) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return ctx.Err()
	})

	d := NewDispatcher(nil, 50*time.Millisecond, slow)
	start := time.Now()
	d.Notify("subject", "body")
	assert.Less(t, time.Since(start), 40*time.Millisecond)

	d.Wait()
	close(release)
}
