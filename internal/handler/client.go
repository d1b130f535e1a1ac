package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"drivermonitor/internal/config"
	"drivermonitor/internal/dto"
	"drivermonitor/internal/logger"

	"github.com/gorilla/websocket"
)

const readTimeout = 60 * time.Second

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ViewerHub keeps the set of dashboard viewers.
type ViewerHub interface {
	Register(client *websocket.Conn)
	Unregister(client *websocket.Conn)
}

// ViewWebsocketHandler handles viewer connections over WebSocket and
// registers them in the hub to receive result events.
func ViewWebsocketHandler(hub ViewerHub, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		connection.SetReadLimit(512)

		hub.Register(connection)
		defer hub.Unregister(connection)

		for {
			_, _, err := connection.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("Viewer disconnected normally")
				} else {
					logger.Warning("Viewer disconnected with error: %v", err)
				}
				break
			}
		}
	}
}

// StreamWebsocketHandler answers every {"frame": ...} message received on the
// socket with a BehaviorResult, or with {"error": ...} when the frame fails.
func StreamWebsocketHandler(inferer Inferer, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		defer connection.Close()

		connection.SetReadLimit(maxBodyBytes(cfg))
		connection.SetReadDeadline(time.Now().Add(readTimeout))
		connection.SetPongHandler(func(appData string) error {
			connection.SetReadDeadline(time.Now().Add(readTimeout))
			return nil
		})

		logger.Info("Stream client connected: %s", r.RemoteAddr)

		for {
			_, msg, err := connection.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("Stream client disconnected")
				} else {
					logger.Warning("Stream client disconnected with error: %v", err)
				}
				return
			}
			connection.SetReadDeadline(time.Now().Add(readTimeout))

			var req dto.InferRequest
			if err := json.Unmarshal(msg, &req); err != nil {
				if err := connection.WriteJSON(dto.ErrorResponse{Error: "Invalid JSON message"}); err != nil {
					return
				}
				continue
			}

			result, _, err := infer(r.Context(), inferer, req.Frame)
			if err != nil {
				logger.Error("Inference error: %v", err)
				err = connection.WriteJSON(dto.ErrorResponse{Error: err.Error()})
			} else {
				err = connection.WriteJSON(result)
			}
			if err != nil {
				logger.Warning("Failed to write stream response: %v", err)
				return
			}
		}
	}
}
