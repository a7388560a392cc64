package realtime

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanSource struct {
	ch       chan Message
	released chan struct{}
}

func (s *chanSource) Listen(_ context.Context, _ string) (<-chan Message, func(), error) {
	return s.ch, func() { close(s.released) }, nil
}

func TestStreamHandler_RejectsAnonymous(t *testing.T) {
	h := NewStreamHandler(&chanSource{}, func(*http.Request) (string, error) {
		return "", errors.New("no token")
	}, testLogger(), time.Second)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stream", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStreamHandler_StreamsMessages(t *testing.T) {
	src := &chanSource{ch: make(chan Message, 2), released: make(chan struct{})}
	h := NewStreamHandler(src, func(*http.Request) (string, error) { return "usr-1", nil }, testLogger(), time.Hour)

	srv := httptest.NewServer(h)
	defer srv.Close()

	src.ch <- Message{Type: MessageNotification, Data: map[string]string{"message": "Found 3 videos"}}

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	var events []string
	var payload string
	for payload == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		switch {
		case strings.HasPrefix(line, "event: "):
			events = append(events, strings.TrimSpace(strings.TrimPrefix(line, "event: ")))
		case strings.HasPrefix(line, "data: ") && len(events) == 2:
			payload = line
		}
	}
	assert.Contains(t, payload, "Found 3 videos")
	assert.Equal(t, []string{MessageConnected, MessageNotification}, events)

	close(src.ch)
	select {
	case <-src.released:
	case <-time.After(time.Second):
		t.Fatal("listener was not released")
	}
}
