package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"img-compress-go/internal/config"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

func newTestServer() *Server {
	log := logrus.New()
	log.SetOutput(io.Discard)
	cfg := config.DefaultConfig()
	return NewServer(cfg, log)
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return resp
}

func TestStatusIdle(t *testing.T) {
	rec := doRequest(t, newTestServer(), http.MethodGet, "/api/status", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("Status code = %d, want 200", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if !resp.Success {
		t.Error("Expected success response")
	}
	data, ok := resp.Data.(map[string]interface{})
	if !ok || data["running"] != false {
		t.Errorf("Data = %v, want running=false", resp.Data)
	}
}

func TestCompressRequiresInputDir(t *testing.T) {
	rec := doRequest(t, newTestServer(), http.MethodPost, "/api/compress", `{}`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status code = %d, want 400", rec.Code)
	}
	if resp := decodeResponse(t, rec); resp.Success {
		t.Error("Expected failure response for missing input_dir")
	}
}

func TestCompressRejectsMissingDirectory(t *testing.T) {
	rec := doRequest(t, newTestServer(), http.MethodPost, "/api/compress",
		`{"input_dir": "/definitely/not/a/real/dir"}`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status code = %d, want 400", rec.Code)
	}
}

func TestCompressRejectsInvalidBody(t *testing.T) {
	rec := doRequest(t, newTestServer(), http.MethodPost, "/api/compress", `{not json`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status code = %d, want 400", rec.Code)
	}
}

func dialWebSocket(t *testing.T, s *Server, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	// The server registers the client asynchronously after the upgrade.
	for i := 0; i < 100; i++ {
		s.wsMutex.Lock()
		n := len(s.wsClients)
		s.wsMutex.Unlock()
		if n == 1 {
			return conn
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("WebSocket client was never registered")
	return nil
}

func TestBroadcastFromConcurrentWorkers(t *testing.T) {
	s := newTestServer()
	ts := httptest.NewServer(s.router)
	defer ts.Close()

	conn := dialWebSocket(t, s, ts)

	const writers = 8
	const perWriter = 50

	done := make(chan struct{})
	go func() {
		defer close(done)
		for received := 0; received < writers*perWriter; received++ {
			_, data, err := conn.ReadMessage()
			if err != nil {
				t.Errorf("Read failed after %d messages: %v", received, err)
				return
			}
			var msg WSMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				t.Errorf("Received corrupt frame: %v", err)
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				s.broadcastWSMessage("file_result", fileOutcome{
					Source: "photo.png",
					Status: "compressed",
				})
			}
		}()
	}
	wg.Wait()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Timed out waiting for broadcast messages")
	}
}

func TestRunContextReleasedAfterCompletion(t *testing.T) {
	s := newTestServer()
	ctx, cancel := context.WithCancel(context.Background())

	released := false
	s.runCompressAsync(ctx, func() {
		released = true
		cancel()
	}, CompressRequest{InputDir: t.TempDir(), OutputDir: t.TempDir()})

	if !released {
		t.Error("Expected cancel func to be called when the run finishes")
	}
	select {
	case <-ctx.Done():
	default:
		t.Error("Expected run context to be cancelled after completion")
	}
}

func TestReportEmptyBeforeAnyRun(t *testing.T) {
	rec := doRequest(t, newTestServer(), http.MethodGet, "/api/report", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("Status code = %d, want 200", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if !resp.Success {
		t.Error("Expected success response")
	}
	if resp.Data != nil {
		t.Errorf("Data = %v, want nil before any run", resp.Data)
	}
}
