package httpapi

import (
	"net/http"

	"callcenter-backend/internal/auth"
	"callcenter-backend/internal/telephony"
	"callcenter-backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

const contentTypeXML = "application/xml"

// apologyMessage is spoken to the caller when webhook handling fails. The
// caller cannot see an HTTP error page, so every failure becomes speech.
const apologyMessage = "We are sorry. An application error has occurred. Please try again later. Goodbye."

// IncomingCall handles the provider's inbound-call webhook. It always
// answers 200 with TwiML; failures degrade to a spoken apology.
func (h Handlers) IncomingCall(c *gin.Context) {
	log := logger.FromGin(c)

	form, err := telephony.ParseVoiceWebhook(c.Request)
	if err != nil || form.CallSid == "" {
		log.Warn("inbound webhook unreadable", "err", err)
		c.Data(http.StatusOK, contentTypeXML, []byte(telephony.SayHangupTwiML(apologyMessage)))
		return
	}

	instr, err := h.Tracker.OnInboundCall(c.Request.Context(), form.CallSid, form.To)
	if err != nil {
		log.Error("inbound call handling failed", "call_sid", form.CallSid, "err", err)
		c.Data(http.StatusOK, contentTypeXML, []byte(telephony.SayHangupTwiML(apologyMessage)))
		return
	}

	twiml, err := telephony.RenderTwiML(instr)
	if err != nil {
		log.Error("twiml render failed", "call_sid", form.CallSid, "err", err)
		c.Data(http.StatusOK, contentTypeXML, []byte(telephony.SayHangupTwiML(apologyMessage)))
		return
	}
	c.Data(http.StatusOK, contentTypeXML, []byte(twiml))
}

// OutboundVoice handles the TwiML-app webhook fired when an agent's browser
// places a call. Stateless; no session is tracked for outbound legs.
func (h Handlers) OutboundVoice(c *gin.Context) {
	log := logger.FromGin(c)

	form, err := telephony.ParseVoiceWebhook(c.Request)
	if err != nil {
		log.Warn("outbound webhook unreadable", "err", err)
		c.Data(http.StatusOK, contentTypeXML, []byte(telephony.SayHangupTwiML(apologyMessage)))
		return
	}

	callerID := form.From
	if callerID == "" {
		callerID = h.Cfg.Twilio.PhoneNumber
	}

	instr := h.Tracker.OutboundCall(callerID, form.To)
	twiml, err := telephony.RenderTwiML(instr)
	if err != nil {
		log.Error("twiml render failed", "err", err)
		c.Data(http.StatusOK, contentTypeXML, []byte(telephony.SayHangupTwiML(apologyMessage)))
		return
	}
	c.Data(http.StatusOK, contentTypeXML, []byte(twiml))
}

type callActionRequest struct {
	CallSid string `json:"callSid"`
}

// AcceptCall claims a ringing call for the authenticated agent. Exactly one
// concurrent accept wins; losers get a 409.
func (h Handlers) AcceptCall(c *gin.Context) {
	var req callActionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.CallSid == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "callSid required"})
		return
	}

	if err := h.Tracker.AcceptCall(c.Request.Context(), req.CallSid); err != nil {
		abortForError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "accepted", "callSid": req.CallSid})
}

// EndCall drops the tracked session. Idempotent: ending an unknown call
// still succeeds and still notifies clients.
func (h Handlers) EndCall(c *gin.Context) {
	var req callActionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.CallSid == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "callSid required"})
		return
	}

	if err := h.Tracker.EndCall(c.Request.Context(), req.CallSid); err != nil {
		abortForError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ended", "callSid": req.CallSid})
}

// VoiceToken issues a browser voice-SDK access token for the given user.
// Agents can only mint tokens for themselves; admins for anyone.
func (h Handlers) VoiceToken(c *gin.Context) {
	targetID := c.Param("userId")
	if targetID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "userId required"})
		return
	}

	callerID, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	if targetID != callerID && role != auth.RoleAdmin {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	u, err := h.Users.Current(c.Request.Context(), targetID)
	if err != nil {
		abortForError(c, err)
		return
	}

	token, err := h.Gateway.VoiceAccessToken(u.ClientIdentity())
	if err != nil {
		logger.FromGin(c).Error("voice token issuance failed", "user_id", targetID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "identity": u.ClientIdentity()})
}
