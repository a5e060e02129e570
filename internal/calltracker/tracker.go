package calltracker

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"callcenter-backend/internal/users"
)

// RingTimeout is the bounded ring window handed to the provider on every
// dial instruction. The provider tears the attempt down after this window
// on its own; nothing here cancels an issued instruction.
const RingTimeout = 30 * time.Second

// Server-to-client event names on the notification channel.
const (
	EventIncomingCall = "incoming_call"
	EventCallAccepted = "call_accepted"
	EventCallEnded    = "call_ended"
)

// Instruction tells the webhook layer what to render back to the provider.
// The caller cannot see HTTP statuses mid-call, so every outcome (including
// "nobody owns this number") must be expressible as an instruction.
type InstructionKind string

const (
	InstructDialClient InstructionKind = "dial_client"
	InstructDialNumber InstructionKind = "dial_number"
	InstructReject     InstructionKind = "reject"
	InstructSayHangup  InstructionKind = "say_hangup"
)

type Instruction struct {
	Kind InstructionKind

	// ClientIdentity is set for dial_client.
	ClientIdentity string

	// Number and CallerID are set for dial_number.
	Number   string
	CallerID string

	// Message is set for say_hangup.
	Message string

	RingTimeout time.Duration
}

// AgentResolver maps a dialed number to the agent who answers it.
type AgentResolver interface {
	ByPhoneNumber(ctx context.Context, number string) (users.User, error)
}

// Publisher fans lifecycle events out to connected browser sessions.
type Publisher interface {
	PublishToUser(userID, event string, payload any)
	Broadcast(event string, payload any)
}

type CallEvent struct {
	CallSid  string `json:"callSid"`
	ToNumber string `json:"toNumber,omitempty"`
}

// Tracker is the single source of truth for whether a live call has been
// claimed and who should be notified about it.
type Tracker struct {
	store  Store
	agents AgentResolver
	pub    Publisher
	log    *slog.Logger
}

func New(store Store, agents AgentResolver, pub Publisher, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{store: store, agents: agents, pub: pub, log: log}
}

const unassignedMessage = "We are sorry. The number you have dialed is not assigned to an agent. Goodbye."

// OnInboundCall handles a provider inbound-call webhook. The agent lookup
// (the only awaited I/O) happens before the session check-and-set so no
// suspension point sits between check and set.
func (t *Tracker) OnInboundCall(ctx context.Context, callID, dialedNumber string) (Instruction, error) {
	if strings.TrimSpace(callID) == "" {
		return Instruction{}, errors.New("calltracker: call id required")
	}

	agent, err := t.agents.ByPhoneNumber(ctx, dialedNumber)
	if errors.Is(err, users.ErrNotFound) {
		// No session is created for unassigned numbers.
		t.log.Warn("inbound call to unassigned number", "call_sid", callID, "to", dialedNumber)
		return Instruction{Kind: InstructSayHangup, Message: unassignedMessage}, nil
	}
	if err != nil {
		return Instruction{}, err
	}

	sess, created, err := t.store.Ensure(ctx, callID, agent.ID)
	if err != nil {
		return Instruction{}, err
	}
	if !created && sess.Accepted {
		// The provider may redeliver the same webhook; never double-ring an
		// already-claimed call.
		return Instruction{Kind: InstructReject}, nil
	}

	t.pub.PublishToUser(agent.ID, EventIncomingCall, CallEvent{CallSid: callID, ToNumber: dialedNumber})

	return Instruction{
		Kind:           InstructDialClient,
		ClientIdentity: agent.ClientIdentity(),
		RingTimeout:    RingTimeout,
	}, nil
}

// AcceptCall claims the call for an agent. Exactly one concurrent accept
// wins; the rest get ErrAlreadyAccepted.
func (t *Tracker) AcceptCall(ctx context.Context, callID string) error {
	if strings.TrimSpace(callID) == "" {
		return errors.New("calltracker: call id required")
	}
	if err := t.store.Accept(ctx, callID); err != nil {
		return err
	}
	t.pub.Broadcast(EventCallAccepted, CallEvent{CallSid: callID})
	return nil
}

// EndCall drops the session. Ending an unknown call is a no-op, but the
// event still goes out so stale client UIs clear.
func (t *Tracker) EndCall(ctx context.Context, callID string) error {
	if strings.TrimSpace(callID) == "" {
		return errors.New("calltracker: call id required")
	}
	if err := t.store.End(ctx, callID); err != nil {
		return err
	}
	t.pub.Broadcast(EventCallEnded, CallEvent{CallSid: callID})
	return nil
}

// OutboundCall builds the dial instruction for an agent-originated call.
// It is stateless and fails soft: a missing destination becomes a spoken
// error, never an error return.
func (t *Tracker) OutboundCall(fromNumber, toNumber string) Instruction {
	toNumber = strings.TrimSpace(toNumber)
	if toNumber == "" {
		return Instruction{Kind: InstructSayHangup, Message: "No destination provided."}
	}
	return Instruction{
		Kind:        InstructDialNumber,
		Number:      toNumber,
		CallerID:    strings.TrimSpace(fromNumber),
		RingTimeout: RingTimeout,
	}
}

// PruneStale sweeps sessions that were never accepted within maxAge and
// broadcasts call_ended for each, so abandoned ring attempts do not linger
// in client UIs. Used by the background sweeper.
func (t *Tracker) PruneStale(ctx context.Context, maxAge time.Duration) (int, error) {
	pruned, err := t.store.PruneStale(ctx, maxAge)
	if err != nil {
		return 0, err
	}
	for _, callID := range pruned {
		t.pub.Broadcast(EventCallEnded, CallEvent{CallSid: callID})
	}
	return len(pruned), nil
}
