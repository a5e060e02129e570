package notify

import (
	"encoding/json"
	"net/http"

	"callcenter-backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients connect from the CRM frontends; origin allow-listing
	// is handled at the proxy, as with the REST CORS policy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// clientMessage is what browsers send over the socket. The only supported
// client event is register_user, binding the socket to an agent's channel.
type clientMessage struct {
	Event string `json:"event"`
	Data  struct {
		UserID string `json:"userId"`
	} `json:"data"`
}

const clientEventRegisterUser = "register_user"

// Handler upgrades GET /ws and pumps client messages into the hub.
func Handler(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.FromGin(c)

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn("websocket upgrade failed", "err", err)
			return
		}

		conn := NewConnection(ws)
		hub.Attach(conn)
		conn.Start()
		log.Debug("client connected", "conn", conn.ID())

		defer func() {
			hub.Detach(conn)
			conn.Close(websocket.CloseNormalClosure, "bye")
			log.Debug("client disconnected", "conn", conn.ID())
		}()

		for {
			_, raw, err := ws.ReadMessage()
			if err != nil {
				return
			}

			var msg clientMessage
			if err := json.Unmarshal(raw, &msg); err != nil {
				log.Debug("unreadable client message", "conn", conn.ID(), "err", err)
				continue
			}
			if msg.Event == clientEventRegisterUser {
				hub.Register(conn, msg.Data.UserID)
				log.Debug("channel registered", "conn", conn.ID(), "user_id", msg.Data.UserID)
			}
		}
	}
}
