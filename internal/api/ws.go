package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mtspnav/internal/model"
	"mtspnav/internal/mtsp"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

const (
	wsReadTimeout  = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// SolveWSHandler handles /v1/mtsp/ws. The client sends one solve frame and receives
// progress events followed by a result or error frame. Closing the socket cancels the solve.
func (s *Server) SolveWSHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r, false)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(maxBodyBytes)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

	var mu sync.Mutex
	write := func(msg model.WSMessage) error {
		mu.Lock()
		defer mu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteJSON(msg)
	}

	var msg model.WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		return
	}
	if msg.Type != "solve" || msg.Solve == nil {
		_ = write(model.WSMessage{Type: "error", Problem: newProblem(http.StatusBadRequest, "Invalid message", `expected {"type":"solve","solve":{...}}`, r.URL.Path)})
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	_ = conn.SetReadDeadline(time.Time{})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	obs := func(ev mtsp.Event) {
		if err := write(model.WSMessage{Type: "event", Event: &ev}); err != nil {
			cancel()
		}
	}
	resp, err := s.solve(ctx, p.Tenant, *msg.Solve, obs)
	if err != nil {
		prob := solveProblem(err, r.URL.Path)
		prob.RunID = resp.RunID
		_ = write(model.WSMessage{Type: "error", Problem: prob})
	} else {
		_ = write(model.WSMessage{Type: "result", Result: &resp})
	}
	mu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	mu.Unlock()
}
