// Package events publishes domain events about groups, members and expenses.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	GroupCreated      Type = "group.created"
	GroupDeleted      Type = "group.deleted"
	MemberJoined      Type = "member.joined"
	MemberRemoved     Type = "member.removed"
	MemberRoleChanged Type = "member.role_changed"
	ExpenseCreated    Type = "expense.created"
	ExpenseUpdated    Type = "expense.updated"
	ExpenseDeleted    Type = "expense.deleted"
	InviteCreated     Type = "invite.created"
	InviteRevoked     Type = "invite.revoked"
	ReportGenerated   Type = "report.generated"
	UserRegistered    Type = "user.registered"
	UserUpdated       Type = "user.updated"
	UserRoleChanged   Type = "user.role_changed"
	UserDeleted       Type = "user.deleted"
)

type Event struct {
	ID         uuid.UUID              `json:"id"`
	Type       Type                   `json:"type"`
	GroupID    *uuid.UUID             `json:"groupID,omitempty"`
	ActorID    *uuid.UUID             `json:"actorID,omitempty"`
	ResourceID *uuid.UUID             `json:"resourceID,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
	OccurredAt time.Time              `json:"occurredAt"`
}

func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types lists the event types in publish order.
func (r *Recorder) Types() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]Type, len(r.events))
	for i, e := range r.events {
		types[i] = e.Type
	}
	return types
}
