package telephony

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseVoiceWebhook(t *testing.T) {
	body := strings.NewReader("CallSid=CA123&From=%2B15551234567&To=%2B15557654321")
	r := httptest.NewRequest(http.MethodPost, "/incoming", body)
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	form, err := ParseVoiceWebhook(r)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if form.CallSid != "CA123" {
		t.Fatalf("expected CallSid, got %q", form.CallSid)
	}
	if form.From != "+15551234567" || form.To != "+15557654321" {
		t.Fatalf("unexpected from/to: %q %q", form.From, form.To)
	}
}

func TestParseSMSWebhook(t *testing.T) {
	body := strings.NewReader("MessageSid=SM9&From=%2B15551234567&To=%2B15557654321&Body=hello+there&SmsStatus=received")
	r := httptest.NewRequest(http.MethodPost, "/sms-webhook", body)
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	form, err := ParseSMSWebhook(r)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if form.MessageSid != "SM9" {
		t.Fatalf("expected MessageSid, got %q", form.MessageSid)
	}
	if form.Body != "hello there" {
		t.Fatalf("expected decoded body, got %q", form.Body)
	}
	if form.SmsStatus != "received" {
		t.Fatalf("expected status, got %q", form.SmsStatus)
	}
}
