package telephony

import (
	"context"

	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// DefaultListLimit bounds provider list calls; the history endpoints are a
// recent-activity view, not a full export.
const DefaultListLimit = 20

type SMSRequest struct {
	From string
	To   string
	Body string
}

type SMSResult struct {
	Sid    string `json:"sid"`
	Status string `json:"status"`
}

// CarrierInfo is the subset of a lookup result we surface.
type CarrierInfo struct {
	PhoneNumber string `json:"phoneNumber"`
	CountryCode string `json:"countryCode"`
	Name        string `json:"carrierName"`
	Type        string `json:"carrierType"`
}

// ConversationInfo describes a provider-side conversation resource.
type ConversationInfo struct {
	Sid          string `json:"sid"`
	UniqueName   string `json:"uniqueName"`
	FriendlyName string `json:"friendlyName"`
	State        string `json:"state"`
}

// Gateway is the outbound provider surface. List results pass the provider
// records through unchanged so clients see what the provider reports.
type Gateway interface {
	SendSMS(ctx context.Context, req SMSRequest) (SMSResult, error)
	ListCalls(ctx context.Context, limit int) ([]openapi.ApiV2010Call, error)
	ListMessages(ctx context.Context, limit int) ([]openapi.ApiV2010Message, error)
	ListRecordings(ctx context.Context, limit int) ([]openapi.ApiV2010Recording, error)
	ListIncomingNumbers(ctx context.Context) ([]openapi.ApiV2010IncomingPhoneNumber, error)
	CarrierLookup(ctx context.Context, number string) (CarrierInfo, error)
	FetchOrCreateConversation(ctx context.Context, uniqueName string) (ConversationInfo, error)
	VoiceAccessToken(identity string) (string, error)
}
