// Package main runs a demo WebSocket client that streams an MTSP solve.
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"os"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	Solve   any             `json:"solve,omitempty"`
	Event   json.RawMessage `json:"event,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Problem json.RawMessage `json:"problem,omitempty"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/mtsp/ws"}
	hdr := http.Header{}
	hdr.Set("X-Tenant-Id", "t_demo")
	hdr.Set("X-Role", "admin")
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	// Eight stops around central Berlin, two vehicles
	solve := map[string]any{
		"vehicles": 2,
		"profile":  "car",
		"points": []map[string]float64{
			{"lat": 52.5200, "lng": 13.4050},
			{"lat": 52.5163, "lng": 13.3777},
			{"lat": 52.5079, "lng": 13.3376},
			{"lat": 52.4996, "lng": 13.4187},
			{"lat": 52.5306, "lng": 13.3836},
			{"lat": 52.5450, "lng": 13.4120},
			{"lat": 52.4862, "lng": 13.4250},
			{"lat": 52.5100, "lng": 13.4500},
		},
	}
	if err := c.WriteJSON(wsMessage{Type: "solve", Solve: solve}); err != nil {
		log.Fatal(err)
	}

	for {
		var m wsMessage
		if err := c.ReadJSON(&m); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return
			}
			log.Fatalf("read: %v", err)
		}
		switch m.Type {
		case "event":
			log.Printf("WS <- event: %s", m.Event)
		case "result":
			log.Printf("WS <- result: %s", m.Result)
		case "error":
			log.Printf("WS <- error: %s", m.Problem)
		}
	}
}
