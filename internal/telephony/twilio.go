package telephony

import (
	"context"
	"errors"
	"strings"

	"callcenter-backend/internal/config"

	"github.com/twilio/twilio-go"
	twjwt "github.com/twilio/twilio-go/client/jwt"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	conversations "github.com/twilio/twilio-go/rest/conversations/v1"
	lookups "github.com/twilio/twilio-go/rest/lookups/v1"
)

// TwilioGateway implements Gateway on the Twilio REST API. REST calls
// authenticate with the account SID and auth token; voice access tokens are
// signed with the API key pair.
type TwilioGateway struct {
	client *twilio.RestClient
	cfg    config.TwilioConfig
}

func NewTwilioGateway(cfg config.TwilioConfig) *TwilioGateway {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &TwilioGateway{client: client, cfg: cfg}
}

func (g *TwilioGateway) SendSMS(ctx context.Context, req SMSRequest) (SMSResult, error) {
	if strings.TrimSpace(req.To) == "" || strings.TrimSpace(req.Body) == "" {
		return SMSResult{}, errors.New("telephony: to and body required")
	}
	from := strings.TrimSpace(req.From)
	if from == "" {
		from = g.cfg.PhoneNumber
	}

	params := &openapi.CreateMessageParams{}
	params.SetFrom(from)
	params.SetTo(req.To)
	params.SetBody(req.Body)

	resp, err := g.client.Api.CreateMessage(params)
	if err != nil {
		return SMSResult{}, err
	}
	return SMSResult{Sid: deref(resp.Sid), Status: deref(resp.Status)}, nil
}

func (g *TwilioGateway) ListCalls(ctx context.Context, limit int) ([]openapi.ApiV2010Call, error) {
	params := &openapi.ListCallParams{}
	params.SetLimit(normalizeLimit(limit))
	return g.client.Api.ListCall(params)
}

func (g *TwilioGateway) ListMessages(ctx context.Context, limit int) ([]openapi.ApiV2010Message, error) {
	params := &openapi.ListMessageParams{}
	params.SetLimit(normalizeLimit(limit))
	return g.client.Api.ListMessage(params)
}

func (g *TwilioGateway) ListRecordings(ctx context.Context, limit int) ([]openapi.ApiV2010Recording, error) {
	params := &openapi.ListRecordingParams{}
	params.SetLimit(normalizeLimit(limit))
	return g.client.Api.ListRecording(params)
}

func (g *TwilioGateway) ListIncomingNumbers(ctx context.Context) ([]openapi.ApiV2010IncomingPhoneNumber, error) {
	params := &openapi.ListIncomingPhoneNumberParams{}
	params.SetLimit(normalizeLimit(0))
	return g.client.Api.ListIncomingPhoneNumber(params)
}

func (g *TwilioGateway) CarrierLookup(ctx context.Context, number string) (CarrierInfo, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return CarrierInfo{}, errors.New("telephony: phone number required")
	}

	params := &lookups.FetchPhoneNumberParams{}
	params.SetType([]string{"carrier"})

	resp, err := g.client.LookupsV1.FetchPhoneNumber(number, params)
	if err != nil {
		return CarrierInfo{}, err
	}

	info := CarrierInfo{
		PhoneNumber: deref(resp.PhoneNumber),
		CountryCode: deref(resp.CountryCode),
	}
	if resp.Carrier != nil {
		c := *resp.Carrier
		if name, ok := c["name"].(string); ok {
			info.Name = name
		}
		if typ, ok := c["type"].(string); ok {
			info.Type = typ
		}
	}
	return info, nil
}

// FetchOrCreateConversation fetches the conversation addressed by unique
// name, creating it on a fetch miss. Fetch errors are treated as a miss to
// match provider behavior for unknown names.
func (g *TwilioGateway) FetchOrCreateConversation(ctx context.Context, uniqueName string) (ConversationInfo, error) {
	uniqueName = strings.TrimSpace(uniqueName)
	if uniqueName == "" {
		return ConversationInfo{}, errors.New("telephony: unique name required")
	}

	if conv, err := g.client.ConversationsV1.FetchConversation(uniqueName); err == nil {
		return conversationInfo(conv), nil
	}

	params := &conversations.CreateConversationParams{}
	params.SetUniqueName(uniqueName)
	conv, err := g.client.ConversationsV1.CreateConversation(params)
	if err != nil {
		return ConversationInfo{}, err
	}
	return conversationInfo(conv), nil
}

func (g *TwilioGateway) VoiceAccessToken(identity string) (string, error) {
	if strings.TrimSpace(identity) == "" {
		return "", errors.New("telephony: identity required")
	}

	token := twjwt.CreateAccessToken(twjwt.AccessTokenParams{
		AccountSid:    g.cfg.AccountSID,
		SigningKeySid: g.cfg.APIKeySID,
		Secret:        g.cfg.APIKeySecret,
		Identity:      identity,
		Ttl:           3600,
	})
	token.AddGrant(&twjwt.VoiceGrant{
		Incoming: twjwt.Incoming{Allow: true},
		Outgoing: twjwt.Outgoing{ApplicationSid: g.cfg.TwimlAppSID},
	})
	return token.ToJwt()
}

func conversationInfo(conv *conversations.ConversationsV1Conversation) ConversationInfo {
	return ConversationInfo{
		Sid:          deref(conv.Sid),
		UniqueName:   deref(conv.UniqueName),
		FriendlyName: deref(conv.FriendlyName),
		State:        deref(conv.State),
	}
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
