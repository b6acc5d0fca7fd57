// Package main runs a demo WebSocket client for the webhook activity feed.
//
// It starts a local receiver, subscribes it to partner.created, creates a
// partner and prints the dispatch summary pushed over the activity socket.
package main

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const tenant = "t_demo"

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Local subscriber endpoint
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		log.Fatal(err)
	}
	go func() {
		_ = http.Serve(ln, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			log.Printf("HOOK <- %s %s", r.Header.Get("User-Agent"), b)
		}))
	}()
	hookURL := "http://" + ln.Addr().String() + "/hook"

	post(base+"/v1/webhooks", map[string]any{"eventType": "partner.created", "url": hookURL})

	// Connect WS
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/admin/webhook-activity/ws"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), headers())
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- %s", msg)
		}
	}()

	// Trigger a dispatch via partner creation
	time.Sleep(300 * time.Millisecond)
	post(base+"/v1/partners", map[string]any{"name": "Demo Partner", "email": "ops@demo.example"})

	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}

func headers() http.Header {
	hdr := http.Header{}
	hdr.Set("X-Tenant-Id", tenant)
	hdr.Set("X-Role", "admin")
	return hdr
}

func post(u string, body any) {
	b, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, u, bytes.NewReader(b))
	req.Header = headers()
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	out, _ := io.ReadAll(resp.Body)
	log.Printf("POST %s -> %d %s", u, resp.StatusCode, bytes.TrimSpace(out))
}
