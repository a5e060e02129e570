package httpapi

import (
	"net/http"

	"callcenter-backend/internal/telephony"
	"callcenter-backend/pkg/logger"

	"github.com/gin-gonic/gin"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Provider history pass-throughs. Clients see what the provider reports.

func (h Handlers) Calls(c *gin.Context) {
	calls, err := h.Gateway.ListCalls(c.Request.Context(), telephony.DefaultListLimit)
	if err != nil {
		logger.FromGin(c).Error("call history fetch failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "history unavailable"})
		return
	}
	c.JSON(http.StatusOK, calls)
}

func (h Handlers) ProviderMessages(c *gin.Context) {
	msgs, err := h.Gateway.ListMessages(c.Request.Context(), telephony.DefaultListLimit)
	if err != nil {
		logger.FromGin(c).Error("message history fetch failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "history unavailable"})
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (h Handlers) Recordings(c *gin.Context) {
	recs, err := h.Gateway.ListRecordings(c.Request.Context(), telephony.DefaultListLimit)
	if err != nil {
		logger.FromGin(c).Error("recording history fetch failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "history unavailable"})
		return
	}
	c.JSON(http.StatusOK, recs)
}

func (h Handlers) IncomingNumbers(c *gin.Context) {
	nums, err := h.Gateway.ListIncomingNumbers(c.Request.Context())
	if err != nil {
		logger.FromGin(c).Error("number list fetch failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": "numbers unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "numbers": nums})
}

type callWithCarrier struct {
	Call    openapi.ApiV2010Call   `json:"call"`
	Carrier *telephony.CarrierInfo `json:"carrier,omitempty"`
}

// CallsWithLookup enriches recent calls with carrier lookups on the remote
// endpoint. Lookup failures leave the carrier empty rather than failing the
// whole listing.
func (h Handlers) CallsWithLookup(c *gin.Context) {
	log := logger.FromGin(c)

	calls, err := h.Gateway.ListCalls(c.Request.Context(), telephony.DefaultListLimit)
	if err != nil {
		log.Error("call history fetch failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "history unavailable"})
		return
	}

	cache := make(map[string]*telephony.CarrierInfo)
	out := make([]callWithCarrier, 0, len(calls))
	for _, call := range calls {
		item := callWithCarrier{Call: call}
		if call.From != nil && *call.From != "" {
			number := *call.From
			info, seen := cache[number]
			if !seen {
				if looked, err := h.Gateway.CarrierLookup(c.Request.Context(), number); err == nil {
					info = &looked
				} else {
					log.Debug("carrier lookup failed", "number", number, "err", err)
				}
				cache[number] = info
			}
			item.Carrier = info
		}
		out = append(out, item)
	}
	c.JSON(http.StatusOK, out)
}

// Conversations returns the derived per-counterparty view of the local
// message log.
func (h Handlers) Conversations(c *gin.Context) {
	convos, err := h.Messages.ListConversations(c.Request.Context(), h.Cfg.Twilio.PhoneNumber)
	if err != nil {
		abortForError(c, err)
		return
	}
	c.JSON(http.StatusOK, convos)
}

// Thread returns the logged history with one counterparty, oldest first.
func (h Handlers) Thread(c *gin.Context) {
	number := c.Param("phoneNumber")
	msgs, err := h.Messages.Thread(c.Request.Context(), number)
	if err != nil {
		abortForError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}
