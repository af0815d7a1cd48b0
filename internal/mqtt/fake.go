package mqtt

import (
	"github.com/sweeney/irrigation-controller/internal/logic"
)

// FakePublisher records published messages for test assertions.
type FakePublisher struct {
	// Replies contains all command acknowledgements that were published.
	Replies []logic.Reply

	// ReplyPayloads contains the JSON payloads for replies.
	ReplyPayloads [][]byte

	// Statuses contains all stage transitions that were published.
	Statuses []logic.Event

	// StatusPayloads contains the JSON payloads for stage transitions.
	StatusPayloads [][]byte

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishError, if set, will be returned by PublishReply and PublishStatus.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishReply records the acknowledgement.
func (f *FakePublisher) PublishReply(reply logic.Reply) error {
	if f.PublishError != nil {
		return f.PublishError
	}

	payload, err := FormatReplyPayload(reply)
	if err != nil {
		return err
	}
	f.Replies = append(f.Replies, reply)
	f.ReplyPayloads = append(f.ReplyPayloads, payload)
	return nil
}

// PublishStatus records the stage transition.
func (f *FakePublisher) PublishStatus(event logic.Event) error {
	if f.PublishError != nil {
		return f.PublishError
	}

	payload, err := FormatStatusPayload(event)
	if err != nil {
		return err
	}
	f.Statuses = append(f.Statuses, event)
	f.StatusPayloads = append(f.StatusPayloads, payload)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// StatusStrings returns the status field of every published transition.
func (f *FakePublisher) StatusStrings() []string {
	out := make([]string, len(f.Statuses))
	for i, e := range f.Statuses {
		out[i] = e.Status
	}
	return out
}

// Reset clears recorded messages.
func (f *FakePublisher) Reset() {
	f.Replies = nil
	f.ReplyPayloads = nil
	f.Statuses = nil
	f.StatusPayloads = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.Connected = false
}
