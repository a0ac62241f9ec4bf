package httpapi

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/lukasbauer/tonebridge/internal/relay"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleRelayWS upgrades the connection and runs one relay session on it
// until either side goes away.
func (r *Router) handleRelayWS(w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Printf("relay_ws: upgrade failed: %v", err)
		return
	}

	session := relay.NewSession(r.cfg.Relay, conn, r.logger, r.metrics)
	r.logger.Printf("relay_ws: connection established, session %s", session.ID)

	session.Run(req.Context(), r.sessions)
}
