package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestEventsStreamInitialSnapshotAndChanges(t *testing.T) {
	env := newTestEnvironment(t)
	env.do(t, http.MethodPost, "/appointments", appointmentRequestPayload{CabinNumber: "8123", GuestName: "Alice", Date: "15-01-2025", Time: "02:30 PM"})

	server := httptest.NewServer(env.handler)
	defer server.Close()

	response := openEventStream(t, server, env.token, "appointments")
	defer response.Body.Close()
	if contentType := response.Header.Get("Content-Type"); !strings.HasPrefix(contentType, "text/event-stream") {
		t.Fatalf("unexpected content type %q", contentType)
	}

	reader := bufio.NewReader(response.Body)
	initial := readSnapshotEvent(t, reader)
	if initial.Topic != "appointments" || len(initial.Items) != 1 {
		t.Fatalf("unexpected initial snapshot %+v", initial)
	}

	env.do(t, http.MethodPost, "/appointments", appointmentRequestPayload{CabinNumber: "5010", GuestName: "Bob", Date: "15-01-2025", Time: "03:00 PM"})
	changed := readSnapshotEvent(t, reader)
	if len(changed.Items) != 2 {
		t.Fatalf("expected two appointments after change, got %+v", changed)
	}
}

func TestEventsStreamEndsWhenStreamsAreClosed(t *testing.T) {
	env := newTestEnvironment(t)

	server := httptest.NewServer(env.handler)
	defer server.Close()

	response := openEventStream(t, server, env.token, "guests")
	defer response.Body.Close()

	reader := bufio.NewReader(response.Body)
	if initial := readSnapshotEvent(t, reader); initial.Topic != "guests" {
		t.Fatalf("unexpected initial snapshot %+v", initial)
	}

	env.closeStreams()

	finished := make(chan error, 1)
	go func() {
		_, err := io.Copy(io.Discard, reader)
		finished <- err
	}()
	select {
	case err := <-finished:
		if err != nil && !errors.Is(err, io.EOF) {
			t.Fatalf("unexpected stream error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("expected stream to end after streams were closed")
	}
}

func TestServerShutdownEndsOpenStreams(t *testing.T) {
	env := newTestEnvironment(t)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	httpServer := &http.Server{Handler: env.handler}
	httpServer.RegisterOnShutdown(env.closeStreams)
	go func() { _ = httpServer.Serve(listener) }()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+listener.Addr().String()+"/events?topic=appointments&access_token="+env.token, http.NoBody)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	response, err := http.DefaultClient.Do(request)
	if err != nil {
		t.Fatalf("failed to open stream: %v", err)
	}
	defer response.Body.Close()
	readSnapshotEvent(t, bufio.NewReader(response.Body))

	shutdownCtx, shutdownCancel := context.WithTimeout(t.Context(), 3*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("expected prompt shutdown with an open stream, got %v", err)
	}
}

func TestEventsRejectsUnknownTopic(t *testing.T) {
	env := newTestEnvironment(t)

	recorder := env.do(t, http.MethodGet, "/events?topic=weather", nil)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func openEventStream(t *testing.T, server *httptest.Server, token, topic string) *http.Response {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	t.Cleanup(cancel)
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/events?topic="+topic+"&access_token="+token, http.NoBody)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	response, err := server.Client().Do(request)
	if err != nil {
		t.Fatalf("failed to open stream: %v", err)
	}
	if response.StatusCode != http.StatusOK {
		response.Body.Close()
		t.Fatalf("expected 200, got %d", response.StatusCode)
	}
	return response
}

type decodedSnapshotEvent struct {
	Topic string            `json:"topic"`
	Items []json.RawMessage `json:"items"`
}

// readSnapshotEvent skips heartbeats and returns the next snapshot event.
func readSnapshotEvent(t *testing.T, reader *bufio.Reader) decodedSnapshotEvent {
	t.Helper()
	var eventName string
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("stream ended early: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		field, value, found := strings.Cut(line, ":")
		if !found {
			eventName = ""
			continue
		}
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			eventName = value
		case "data":
			if eventName != realtimeEventSnapshot {
				continue
			}
			var event decodedSnapshotEvent
			if err := json.Unmarshal([]byte(value), &event); err != nil {
				t.Fatalf("failed to decode event: %v", err)
			}
			return event
		}
	}
}
