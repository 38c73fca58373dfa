package publishers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"apron/models"

	"github.com/gorilla/websocket"
)

func testFrame() *models.Frame {
	return &models.Frame{
		Status:      "playing",
		CurrentTime: "00:12",
		Duration:    "03:00",
		Volume:      "80%",
		Index:       1,
		Item:        models.PlaylistItem{Title: "Two", URL: "2.mp3"},
		LineIndex:   3,
		Line:        "la la",
	}
}

func TestFilePublisher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "line.txt")
	p, err := NewFilePublisher(&FilePublisherOptions{Path: path, Format: "> %s\n"})
	if err != nil {
		t.Fatal(err)
	}
	if err = p.Send(testFrame()); err != nil {
		t.Fatal(err)
	}
	if err = p.Send(nil); err != nil {
		t.Fatal(err)
	}
	if err = p.Exit(); err != nil {
		t.Fatal(err)
	}
	b, _ := os.ReadFile(path)
	if string(b) != "> la la\n"+ETX+EOT {
		t.Fatalf("%q", b)
	}
	if _, err = NewFilePublisher(&FilePublisherOptions{Path: "relative.txt"}); err == nil {
		t.Fatal("relative paths must be rejected")
	}
}

func TestHTTPPublisher(t *testing.T) {
	got := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("%s %s", r.Method, r.Header.Get("Content-Type"))
		}
		b, _ := io.ReadAll(r.Body)
		got <- b
	}))
	defer srv.Close()

	p := NewHTTPPublisher(&HTTPPublisherOptions{URL: srv.URL})
	if err := p.Send(testFrame()); err != nil {
		t.Fatal(err)
	}
	var frame map[string]any
	if err := json.Unmarshal(<-got, &frame); err != nil {
		t.Fatal(err)
	}
	if frame["line"] != "la la" || frame["status"] != "playing" || frame["current_time"] != "00:12" {
		t.Fatalf("%v", frame)
	}
	if _, ok := frame["State"]; ok {
		t.Fatal("raw state must not be serialized")
	}
}

func TestHTTPPublisherStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	p := NewHTTPPublisher(&HTTPPublisherOptions{Method: http.MethodPut, URL: srv.URL})
	if err := p.Send(nil); err == nil {
		t.Fatal("non-2xx must fail")
	}
}

func TestWebSocketPublisher(t *testing.T) {
	p := newWebSocketPublisher()
	srv := httptest.NewServer(http.HandlerFunc(p.indexFunc))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(b) != "null" {
		t.Fatalf("%q", b)
	}

	p.Send(testFrame())
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(msg), `"line":"la la"`) {
		t.Fatalf("new clients must receive the last frame first: %s", msg)
	}

	resp, err = http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	b, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(b), `"index":1`) {
		t.Fatalf("%s", b)
	}
}
