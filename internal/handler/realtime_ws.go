package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"convive/config"
	"convive/internal/auth"
	"convive/internal/changefeed"
	"convive/internal/service"
	"convive/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	realtimeWriteWait  = 10 * time.Second
	realtimePongWait   = 60 * time.Second
	realtimePingPeriod = (realtimePongWait * 9) / 10
)

var realtimeUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// RealtimeDeps bundles what one realtime connection needs.
type RealtimeDeps struct {
	Hub           *ws.Hub
	Presence      *ws.PresenceHub
	Feed          *changefeed.Feed
	Notifications *service.NotificationService
	Incidents     *service.IncidentService
	Chat          *service.ChatService
}

// clientCommand is what a connected client may send upstream: liveness
// renewals and its own mark actions, which zero the badge optimistically
// before the store write confirms.
type clientCommand struct {
	Type           string               `json:"type"` // heartbeat | notifications_read | cases_seen | chat_read
	Selector       service.ReadSelector `json:"selector"`
	IncidentID     *uint                `json:"incident_id"`
	ConversationID uint                 `json:"conversation_id"`
}

// UpgradeRealtimeWS opens the per-client realtime channel: live badge
// counters, the institution's presence roster and availability changes. All
// session state lives in this handler's locals; it is created on connect and
// gone on disconnect.
func UpgradeRealtimeWS(cfg *config.JWTConfig, deps RealtimeDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token required"})
			return
		}
		claims, err := auth.ParseAccessToken(cfg, token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		conn, err := realtimeUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		client := &ws.Client{
			SessionID:     uuid.NewString(),
			UserID:        claims.UserID,
			InstitutionID: claims.InstitutionID,
			Role:          claims.Role,
			Send:          make(chan []byte, 256),
		}
		deps.Hub.Register(client)
		defer client.Close()

		// Announce on the roster; membership lives exactly as long as this
		// connection (plus heartbeat renewals against the TTL sweeper).
		deps.Presence.Track(claims.InstitutionID, claims.UserID, client.SessionID)
		defer deps.Presence.Untrack(claims.InstitutionID, claims.UserID, client.SessionID)

		send := func(payload interface{}) {
			data, err := json.Marshal(payload)
			if err != nil {
				return
			}
			client.TrySend(data)
		}

		badges := service.NewBadgeSession(claims.UserID, deps.Notifications, deps.Incidents, deps.Chat, deps.Feed,
			func(counters service.BadgeCounters) {
				send(gin.H{"type": "badges", "badges": counters})
			})
		badges.Start()
		defer badges.Close()

		// Current roster first, so the client starts from a full picture.
		send(gin.H{"type": "presence_snapshot", "online": deps.Presence.Online(claims.InstitutionID)})

		// Availability changes for the institution flow through the feed
		// like any other live data.
		availSub := deps.Feed.Subscribe(changefeed.StreamAvailability, changefeed.KeyIs(claims.InstitutionID))
		defer deps.Feed.Unsubscribe(availSub)
		go func() {
			for ev := range availSub.C() {
				if p, ok := ev.Payload.(changefeed.AvailabilityChanged); ok {
					send(gin.H{"type": "availability", "user_id": p.UserID, "status": p.Status})
				}
			}
		}()

		conn.SetReadDeadline(time.Now().Add(realtimePongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(realtimePongWait))
			deps.Presence.Heartbeat(claims.InstitutionID, claims.UserID, client.SessionID)
			return nil
		})
		go func() {
			ticker := time.NewTicker(realtimePingPeriod)
			defer ticker.Stop()
			for {
				select {
				case msg, ok := <-client.Send:
					if !ok {
						return
					}
					conn.SetWriteDeadline(time.Now().Add(realtimeWriteWait))
					if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
						return
					}
				case <-ticker.C:
					conn.SetWriteDeadline(time.Now().Add(realtimeWriteWait))
					if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
						return
					}
				}
			}
		}()
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var cmd clientCommand
			if json.Unmarshal(raw, &cmd) != nil {
				continue
			}
			switch cmd.Type {
			case "heartbeat":
				deps.Presence.Heartbeat(claims.InstitutionID, claims.UserID, client.SessionID)
			case "notifications_read":
				badges.MarkNotificationsRead(cmd.Selector)
			case "cases_seen":
				badges.MarkCasesSeen(cmd.IncidentID)
			case "chat_read":
				if cmd.ConversationID != 0 {
					badges.MarkConversationRead(cmd.ConversationID)
				}
			}
		}
	}
}
