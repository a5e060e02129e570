package telephony

import (
	"net/http"
	"strings"
)

// Webhook form parsing. Twilio posts application/x-www-form-urlencoded.
// Only the fields this service consumes are captured; business decisions
// are not made here.

type VoiceWebhookForm struct {
	CallSid    string
	AccountSid string
	From       string
	To         string
	CallStatus string
	Direction  string
}

func ParseVoiceWebhook(r *http.Request) (VoiceWebhookForm, error) {
	if err := r.ParseForm(); err != nil {
		return VoiceWebhookForm{}, err
	}
	return VoiceWebhookForm{
		CallSid:    strings.TrimSpace(r.PostFormValue("CallSid")),
		AccountSid: strings.TrimSpace(r.PostFormValue("AccountSid")),
		From:       strings.TrimSpace(r.PostFormValue("From")),
		To:         strings.TrimSpace(r.PostFormValue("To")),
		CallStatus: r.PostFormValue("CallStatus"),
		Direction:  r.PostFormValue("Direction"),
	}, nil
}

type SMSWebhookForm struct {
	MessageSid string
	AccountSid string
	From       string
	To         string
	Body       string
	SmsStatus  string
}

func ParseSMSWebhook(r *http.Request) (SMSWebhookForm, error) {
	if err := r.ParseForm(); err != nil {
		return SMSWebhookForm{}, err
	}
	return SMSWebhookForm{
		MessageSid: strings.TrimSpace(r.PostFormValue("MessageSid")),
		AccountSid: strings.TrimSpace(r.PostFormValue("AccountSid")),
		From:       strings.TrimSpace(r.PostFormValue("From")),
		To:         strings.TrimSpace(r.PostFormValue("To")),
		Body:       r.PostFormValue("Body"),
		SmsStatus:  r.PostFormValue("SmsStatus"),
	}, nil
}
