// Package mqtt provides the message bus adapter with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/sweeney/irrigation-controller/internal/logic"
)

// DefaultTopicPrefix is prepended to every topic name.
const DefaultTopicPrefix = "pwd-"

// Topics holds the full names of every consumed and published topic.
type Topics struct {
	// Consumed
	WaterPlants                string
	ConfigurePumpDelay         string
	ConfigureSolenoid1Duration string
	ConfigureSolenoid2Duration string

	// Published
	Output       string
	StatusOutput string
	System       string
}

// NewTopics builds the topic set for the given prefix.
func NewTopics(prefix string) Topics {
	return Topics{
		WaterPlants:                prefix + "water-plants",
		ConfigurePumpDelay:         prefix + "configure-pump-delay",
		ConfigureSolenoid1Duration: prefix + "configure-solenoid-1-duration",
		ConfigureSolenoid2Duration: prefix + "configure-solenoid-2-duration",
		Output:                     prefix + "output",
		StatusOutput:               prefix + "status-output",
		System:                     prefix + "system",
	}
}

// Commands returns the topics the controller subscribes to.
func (t Topics) Commands() []string {
	return []string{
		t.WaterPlants,
		t.ConfigurePumpDelay,
		t.ConfigureSolenoid1Duration,
		t.ConfigureSolenoid2Duration,
	}
}

// Command maps an inbound topic to the command it carries.
func (t Topics) Command(topic string) logic.Command {
	switch topic {
	case t.WaterPlants:
		return logic.CommandWaterPlants
	case t.ConfigurePumpDelay:
		return logic.CommandConfigurePumpDelay
	case t.ConfigureSolenoid1Duration:
		return logic.CommandConfigureSolenoid1Duration
	case t.ConfigureSolenoid2Duration:
		return logic.CommandConfigureSolenoid2Duration
	default:
		return logic.CommandUnknown
	}
}

// Message is an inbound message handed to the main loop.
type Message struct {
	Topic   string
	Payload []byte
}

// Publisher publishes controller output to MQTT.
type Publisher interface {
	// PublishReply sends a command acknowledgement on the output topic.
	// Returns error if publishing fails (should not crash the process).
	PublishReply(reply logic.Reply) error

	// PublishStatus sends a stage transition on the status topic.
	PublishStatus(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// ReplyPayload is the JSON acknowledgement for a command.
// Exactly one of the fields is set.
type ReplyPayload struct {
	Success string `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
}

// FormatReplyPayload creates {"success":"..."} or {"error":"..."}.
func FormatReplyPayload(reply logic.Reply) ([]byte, error) {
	var p ReplyPayload
	if reply.OK() {
		p.Success = reply.Code
	} else {
		p.Error = reply.Code
	}
	return json.Marshal(p)
}

// StatusPayload is the JSON stage transition. Stage is a decimal string.
type StatusPayload struct {
	Stage  string `json:"stage"`
	Status string `json:"status"`
}

// FormatStatusPayload creates {"stage":"N","status":"..."}.
func FormatStatusPayload(event logic.Event) ([]byte, error) {
	return json.Marshal(StatusPayload{
		Stage:  strconv.Itoa(event.Stage),
		Status: event.Status,
	})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
