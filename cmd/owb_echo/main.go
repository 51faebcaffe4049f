// Package main runs a development controller that logs and echoes robot commands.
package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/frudas24/owbremote/internal/command"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// main is the entrypoint for the echo controller.
func main() {
	addr := flag.String("addr", "0.0.0.0:9001", "Listen address")
	flag.Parse()

	server := &http.Server{
		Addr:              *addr,
		Handler:           newEchoHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Printf("echo: listening on ws://%s", *addr)
	if err := server.ListenAndServe(); err != nil {
		log.Printf("fatal: %v", err)
		os.Exit(1)
	}
}

// newEchoHandler upgrades every request and echoes text frames back as "Echo: <msg>".
func newEchoHandler() http.Handler {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		id := uuid.NewString()
		log.Printf("echo: client %s connected from %s", id, r.RemoteAddr)
		defer log.Printf("echo: client %s disconnected", id)

		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			logFrame(id, data)
			if kind != websocket.TextMessage {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte("Echo: "+string(data))); err != nil {
				return
			}
		}
	})
}

// logFrame prints the raw frame and, when it parses, the decoded command.
func logFrame(client string, data []byte) {
	cmd, err := command.Unmarshal(data)
	if err != nil {
		log.Printf("echo: %s: %s (%v)", client, data, err)
		return
	}
	log.Printf("echo: %s: %s -> %s %+v", client, data, cmd.Kind(), cmd)
}
