package messages

import "time"

// Direction of a logged SMS relative to this call center.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Message is one immutable SMS record. Rows are append-only: never mutated,
// never deleted. Conversation threads are derived, not stored.
type Message struct {
	ID        string    `json:"id" db:"id"`
	Direction string    `json:"direction" db:"direction"`
	From      string    `json:"from" db:"from_number"`
	To        string    `json:"to" db:"to_number"`
	Body      string    `json:"body" db:"body"`
	Status    string    `json:"status" db:"status"`
	DateSent  time.Time `json:"dateSent" db:"date_sent"`
}

// Conversation is a derived per-counterparty summary: the endpoint that is
// not our own number, plus its most recent message.
type Conversation struct {
	Counterparty string  `json:"counterparty"`
	LastMessage  Message `json:"lastMessage"`
}

// Counterparty returns the endpoint that is not ownNumber. A record where
// neither endpoint matches ownNumber should not occur; such a message
// groups under From.
func (m Message) Counterparty(ownNumber string) string {
	if m.From == ownNumber {
		return m.To
	}
	if m.To == ownNumber {
		return m.From
	}
	return m.From
}
