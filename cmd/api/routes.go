package main

import (
	"callcenter-backend/internal/auth"
	"callcenter-backend/internal/config"
	"callcenter-backend/internal/httpapi"
	"callcenter-backend/internal/notify"
	"callcenter-backend/internal/telephony"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authManager *auth.Manager, cfg config.Config) {
	r.GET("/healthz", h.Healthz)

	// Realtime notification socket. Channel binding happens in-band via the
	// register_user client event.
	r.GET("/ws", notify.Handler(h.Hub))

	// Provider webhooks, gated on X-Twilio-Signature.
	signed := telephony.SignatureValidator{
		AuthToken:     cfg.Twilio.AuthToken,
		PublicBaseURL: cfg.Twilio.PublicBaseURL,
		Enabled:       cfg.Twilio.ValidateWebhooks,
	}
	webhooks := r.Group("/", signed.Middleware())
	{
		webhooks.POST("/incoming", h.IncomingCall)
		webhooks.POST("/voice", h.OutboundVoice)
		webhooks.POST("/sms-webhook", h.SMSWebhook)
		// Legacy inbound-SMS path some provider consoles still point at.
		webhooks.POST("/recived", h.SMSWebhook)
	}

	r.POST("/conversation", h.Conversation)

	r.POST("/user/register", h.Register)
	r.POST("/user/login", h.Login)
	r.POST("/user/refresh", h.Refresh)

	authed := r.Group("/", auth.RequireAccessToken(authManager, h.Users.Resolve))
	{
		authed.GET("/token/:userId", h.VoiceToken)

		authed.POST("/accept-call", h.AcceptCall)
		authed.POST("/end-call", h.EndCall)

		authed.POST("/sms", h.SendSMS)

		authed.GET("/calls", h.Calls)
		authed.GET("/calls-with-lookup", h.CallsWithLookup)
		authed.GET("/messages", h.ProviderMessages)
		authed.GET("/messages/:phoneNumber", h.Thread)
		authed.GET("/recordings", h.Recordings)
		authed.GET("/numbers", h.IncomingNumbers)
		authed.GET("/conversations", h.Conversations)

		authed.POST("/user/logout", h.Logout)
		authed.GET("/user/get", h.CurrentUser)

		admin := authed.Group("/", auth.RequireRole(auth.RoleAdmin))
		{
			admin.GET("/user/agents", h.Agents)
		}
	}
}
