package handlers

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// HandleWS upgrades the request and serves the connection until it closes
func (ctx *Context) HandleWS(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := ctx.Hub.Upgrade(w, r)
	if err != nil {
		ctx.logger().Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	ctx.logger().Debug("client connected", "conn_id", conn.ID, "remote", r.RemoteAddr)

	go conn.WritePump()
	conn.ReadPump(func(frame []byte) {
		ctx.HandleMessage(r.Context(), conn.ID, frame)
	})

	ctx.Disconnect(conn.ID)
	ctx.Hub.Unregister(conn.ID)
	ctx.logger().Debug("client disconnected", "conn_id", conn.ID)
}
