package telephony

import (
	"bytes"
	"encoding/xml"
	"errors"
	"strings"

	"callcenter-backend/internal/calltracker"
)

// Minimal TwiML builder for the verbs this service emits. Rendering is done
// here rather than through a provider SDK so the webhook layer stays a plain
// XML boundary.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlDial struct {
	XMLName        xml.Name `xml:"Dial"`
	Timeout        int      `xml:"timeout,attr,omitempty"`
	AnswerOnBridge bool     `xml:"answerOnBridge,attr,omitempty"`
	CallerID       string   `xml:"callerId,attr,omitempty"`
	Client         string   `xml:"Client,omitempty"`
	Number         string   `xml:"Number,omitempty"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Text    string   `xml:",chardata"`
}

type twimlReject struct {
	XMLName xml.Name `xml:"Reject"`
	Reason  string   `xml:"reason,attr,omitempty"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// RenderTwiML maps a call instruction to the TwiML document Twilio executes.
func RenderTwiML(in calltracker.Instruction) (string, error) {
	var r twimlResponse

	switch in.Kind {
	case calltracker.InstructDialClient:
		if strings.TrimSpace(in.ClientIdentity) == "" {
			return "", errors.New("telephony: client identity required for dial_client")
		}
		r.Verbs = append(r.Verbs, twimlDial{
			Timeout:        int(in.RingTimeout.Seconds()),
			AnswerOnBridge: true,
			Client:         in.ClientIdentity,
		})
	case calltracker.InstructDialNumber:
		if strings.TrimSpace(in.Number) == "" {
			return "", errors.New("telephony: number required for dial_number")
		}
		r.Verbs = append(r.Verbs, twimlDial{
			Timeout:        int(in.RingTimeout.Seconds()),
			AnswerOnBridge: true,
			CallerID:       in.CallerID,
			Number:         in.Number,
		})
	case calltracker.InstructReject:
		r.Verbs = append(r.Verbs, twimlReject{Reason: "busy"})
	case calltracker.InstructSayHangup:
		r.Verbs = append(r.Verbs, twimlSay{Text: in.Message}, twimlHangup{})
	default:
		return "", errors.New("telephony: unknown instruction kind")
	}

	return encodeTwiML(r)
}

// SayHangupTwiML renders a spoken message followed by a hangup. It cannot
// fail, so handlers can fall back to it when instruction building errors.
func SayHangupTwiML(message string) string {
	out, err := encodeTwiML(twimlResponse{Verbs: []any{twimlSay{Text: message}, twimlHangup{}}})
	if err != nil {
		// Static structs always encode; keep a plain last resort anyway.
		return xml.Header + "<Response><Hangup></Hangup></Response>"
	}
	return out
}

func encodeTwiML(r twimlResponse) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
