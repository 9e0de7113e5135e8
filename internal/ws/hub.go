// Package ws pushes refresh notices to subscribed dashboards whenever a
// metrics run completes, replacing poll-only refresh.
package ws

import (
	"sync"

	githubws "github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v3"
	"github.com/valyala/fasthttp"
)

var hub = struct {
	sync.Mutex
	conns map[*githubws.Conn]bool
}{conns: make(map[*githubws.Conn]bool)}

func register(conn *githubws.Conn) {
	hub.Lock()
	defer hub.Unlock()
	hub.conns[conn] = true
}

func unregister(conn *githubws.Conn) {
	hub.Lock()
	defer hub.Unlock()
	delete(hub.conns, conn)
}

// Broadcast sends a notice to every subscribed client. Clients whose write
// fails are dropped; they are expected to reconnect.
func Broadcast(noticeType string, props map[string]any) {
	hub.Lock()
	defer hub.Unlock()

	for conn := range hub.conns {
		if err := WriteNotice(conn, noticeType, props); err != nil {
			conn.Close()
			delete(hub.conns, conn)
		}
	}
}

// UpdatesHandler upgrades the connection and keeps it subscribed until the
// client goes away. Clients only listen; inbound messages are discarded.
func UpdatesHandler(c fiber.Ctx) error {
	type requestCtxProvider interface {
		RequestCtx() *fasthttp.RequestCtx
	}

	provider, ok := any(c).(requestCtxProvider)
	if !ok {
		return fiber.ErrInternalServerError
	}

	return Upgrader.Upgrade(provider.RequestCtx(), func(conn *githubws.Conn) {
		defer conn.Close()

		register(conn)
		defer unregister(conn)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
}
