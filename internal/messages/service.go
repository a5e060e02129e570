package messages

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidArgument = errors.New("invalid argument")

// Service owns the message log and derives conversation summaries from it.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

type RecordRequest struct {
	Direction string
	From      string
	To        string
	Body      string
	Status    string
}

// Record appends one immutable message. DateSent defaults to now.
func (s *Service) Record(ctx context.Context, req RecordRequest) (Message, error) {
	req.From = strings.TrimSpace(req.From)
	req.To = strings.TrimSpace(req.To)
	if req.From == "" || req.To == "" || req.Body == "" {
		return Message{}, ErrInvalidArgument
	}
	if req.Direction != DirectionInbound && req.Direction != DirectionOutbound {
		return Message{}, ErrInvalidArgument
	}

	m := Message{
		ID:        uuid.NewString(),
		Direction: req.Direction,
		From:      req.From,
		To:        req.To,
		Body:      req.Body,
		Status:    req.Status,
		DateSent:  s.clock().UTC(),
	}
	if err := s.repo.Insert(ctx, m); err != nil {
		return Message{}, err
	}
	return m, nil
}

// Thread returns the history with one counterparty, oldest first.
func (s *Service) Thread(ctx context.Context, counterparty string) ([]Message, error) {
	counterparty = strings.TrimSpace(counterparty)
	if counterparty == "" {
		return nil, ErrInvalidArgument
	}
	return s.repo.ListByCounterparty(ctx, counterparty)
}

// ListConversations groups all messages by counterparty relative to
// ownNumber and returns each counterparty's most recent message, newest
// conversation first.
func (s *Service) ListConversations(ctx context.Context, ownNumber string) ([]Conversation, error) {
	ownNumber = strings.TrimSpace(ownNumber)
	if ownNumber == "" {
		return nil, ErrInvalidArgument
	}

	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	latest := make(map[string]Message)
	for _, m := range all {
		cp := m.Counterparty(ownNumber)
		if cur, ok := latest[cp]; !ok || m.DateSent.After(cur.DateSent) {
			latest[cp] = m
		}
	}

	out := make([]Conversation, 0, len(latest))
	for cp, m := range latest {
		out = append(out, Conversation{Counterparty: cp, LastMessage: m})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessage.DateSent.After(out[j].LastMessage.DateSent)
	})
	return out, nil
}
