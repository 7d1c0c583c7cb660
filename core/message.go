package core

import (
	"fmt"
	"time"
)

// MessageKind enumerates the tagged inter-agent message variants.
type MessageKind string

const (
	// MsgEscalationNotice asks a peer role to review a deteriorating patient.
	MsgEscalationNotice MessageKind = "escalation_notice"
	// MsgInteractionWarning warns the physician about a drug interaction.
	MsgInteractionWarning MessageKind = "interaction_warning"
	// MsgStatusUpdate is a broadcast progress note; no recipient required.
	MsgStatusUpdate MessageKind = "status_update"
)

// Valid reports whether the kind is a known variant.
func (k MessageKind) Valid() bool {
	switch k {
	case MsgEscalationNotice, MsgInteractionWarning, MsgStatusUpdate:
		return true
	}
	return false
}

// Message is one inter-agent communication. Messages are immutable once
// enqueued on the bus. Sequence is strictly increasing per sender, assigned
// by the sender's runtime at publish time, giving deterministic per-sender
// order even though global order across senders is only partial.
type Message struct {
	ID        string      `json:"id"`
	Sender    Role        `json:"sender"`
	Recipient Role        `json:"recipient,omitempty"` // empty means broadcast
	Kind      MessageKind `json:"kind"`
	PatientID string      `json:"patient_id,omitempty"`
	Text      string      `json:"text"`
	Sequence  uint64      `json:"sequence"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewMessage constructs a validated Message without a sequence number; the
// sending runtime stamps Sequence when it publishes. Variant requirements:
// escalation notices and interaction warnings are patient-scoped and
// addressed (recipient required); status updates may broadcast.
func NewMessage(sender, recipient Role, kind MessageKind, patientID, text string) (Message, error) {
	m := Message{
		ID:        NewID(),
		Sender:    sender,
		Recipient: recipient,
		Kind:      kind,
		PatientID: patientID,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// Broadcast reports whether the message is addressed to every role.
func (m Message) Broadcast() bool { return m.Recipient == "" }

// Validate checks the variant invariants. Called at construction and again
// by the runtime before publishing decider-produced messages.
func (m Message) Validate() error {
	if !m.Sender.Valid() {
		return fmt.Errorf("message: invalid sender %q", m.Sender)
	}
	if m.Recipient != "" && !m.Recipient.Valid() {
		return fmt.Errorf("message: invalid recipient %q", m.Recipient)
	}
	if !m.Kind.Valid() {
		return fmt.Errorf("message: invalid kind %q", m.Kind)
	}
	if m.Text == "" {
		return fmt.Errorf("message: text is required")
	}
	switch m.Kind {
	case MsgEscalationNotice, MsgInteractionWarning:
		if m.PatientID == "" {
			return fmt.Errorf("message: %s requires a patient id", m.Kind)
		}
		if m.Recipient == "" {
			return fmt.Errorf("message: %s requires a recipient", m.Kind)
		}
	}
	return nil
}
