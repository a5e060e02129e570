package httpapi

import (
	"net/http"

	"callcenter-backend/internal/messages"
	"callcenter-backend/internal/notify"
	"callcenter-backend/internal/telephony"
	"callcenter-backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

type sendSMSRequest struct {
	To   string `json:"to"`
	From string `json:"from"`
	Body string `json:"body"`
}

// SendSMS sends an outbound SMS through the provider and appends it to the
// message log. The log write is best-effort: the SMS is already on the wire.
func (h Handlers) SendSMS(c *gin.Context) {
	log := logger.FromGin(c)

	var req sendSMSRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.To == "" || req.Body == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to and body required"})
		return
	}
	if req.From == "" {
		req.From = h.Cfg.Twilio.PhoneNumber
	}

	res, err := h.Gateway.SendSMS(c.Request.Context(), telephony.SMSRequest{
		From: req.From,
		To:   req.To,
		Body: req.Body,
	})
	if err != nil {
		log.Error("sms send failed", "to", req.To, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": "sms send failed"})
		return
	}

	if _, err := h.Messages.Record(c.Request.Context(), messages.RecordRequest{
		Direction: messages.DirectionOutbound,
		From:      req.From,
		To:        req.To,
		Body:      req.Body,
		Status:    res.Status,
	}); err != nil {
		log.Error("outbound sms log failed", "sid", res.Sid, "err", err)
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "sid": res.Sid})
}

// SMSWebhook logs an inbound SMS and pushes it to every connected client.
// Twilio retries non-2xx responses, so only unreadable input is an error.
func (h Handlers) SMSWebhook(c *gin.Context) {
	log := logger.FromGin(c)

	form, err := telephony.ParseSMSWebhook(c.Request)
	if err != nil || form.From == "" || form.To == "" {
		log.Warn("sms webhook unreadable", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}

	status := form.SmsStatus
	if status == "" {
		status = "received"
	}

	rec, err := h.Messages.Record(c.Request.Context(), messages.RecordRequest{
		Direction: messages.DirectionInbound,
		From:      form.From,
		To:        form.To,
		Body:      form.Body,
		Status:    status,
	})
	if err != nil {
		log.Error("inbound sms log failed", "message_sid", form.MessageSid, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "log failed"})
		return
	}

	h.Hub.Broadcast(notify.EventNewMessage, rec)
	c.JSON(http.StatusOK, gin.H{"status": "logged"})
}

type conversationRequest struct {
	UniqueName string `json:"uniqueName"`
}

// Conversation fetches or creates a provider-side conversation resource.
func (h Handlers) Conversation(c *gin.Context) {
	var req conversationRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UniqueName == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "uniqueName required"})
		return
	}

	conv, err := h.Gateway.FetchOrCreateConversation(c.Request.Context(), req.UniqueName)
	if err != nil {
		logger.FromGin(c).Error("conversation fetch-or-create failed", "unique_name", req.UniqueName, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "conversation failed"})
		return
	}
	c.JSON(http.StatusOK, conv)
}
