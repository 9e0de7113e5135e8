package ws

import (
	"encoding/json"

	githubws "github.com/fasthttp/websocket"
	"github.com/valyala/fasthttp"
)

// Upgrader upgrades HTTP connections to WebSocket connections.
var Upgrader = githubws.FastHTTPUpgrader{
	CheckOrigin: func(ctx *fasthttp.RequestCtx) bool {
		return true
	},
}

// WriteNotice sends a typed JSON message to the websocket client.
func WriteNotice(conn *githubws.Conn, noticeType string, props map[string]any) error {
	payload := map[string]any{"type": noticeType}
	for k, v := range props {
		payload[k] = v
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return conn.WriteMessage(githubws.TextMessage, data)
}
