package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/irrigation-controller/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event           string         `json:"event,omitempty"`
	Reason          string         `json:"reason,omitempty"`
	State           string         `json:"state"`
	Stage           int            `json:"stage"`
	CycleID         string         `json:"cycle_id,omitempty"`
	Match           string         `json:"match"`
	Actuators       []ActuatorJSON `json:"actuators"`
	CompletedCycles int            `json:"completed_cycles"`
	LastEvent       *LastEventJSON `json:"last_event,omitempty"`
	Commands        CommandsJSON   `json:"commands"`
	UptimeSeconds   int64          `json:"uptime_seconds"`
	StartTime       string         `json:"start_time"`
	Timestamp       string         `json:"timestamp"`
	MQTT            MQTTStatus     `json:"mqtt"`
	Network         *NetworkJSON   `json:"network,omitempty"`
	Config          ConfigJSON     `json:"config"`
}

// ActuatorJSON is one actuator timer.
type ActuatorJSON struct {
	Name           string `json:"name"`
	On             bool   `json:"on"`
	ElapsedSeconds int    `json:"elapsed_seconds"`
	TargetSeconds  int    `json:"target_seconds"`
}

// LastEventJSON is the most recent stage transition.
type LastEventJSON struct {
	Stage     int    `json:"stage"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// CommandsJSON reports command outcomes.
type CommandsJSON struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs      int64  `json:"poll_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	TopicPrefix string `json:"topic_prefix"`
	HTTPAddr    string `json:"http_addr"`
	Telemetry   bool   `json:"telemetry"`
}

func buildInner(snap Snapshot) StatusInner {
	seq := snap.Sequencer
	state := string(seq.State)
	if state == "" {
		state = string(logic.StateIdle)
	}

	inner := StatusInner{
		State:           state,
		Stage:           int(seq.Stage),
		CycleID:         seq.CycleID,
		Match:           string(seq.Match),
		CompletedCycles: seq.CompletedCycles,
		Commands: CommandsJSON{
			Accepted: snap.Commands.Accepted,
			Rejected: snap.Commands.Rejected,
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			TopicPrefix: snap.Config.TopicPrefix,
			HTTPAddr:    snap.Config.HTTPAddr,
			Telemetry:   snap.Config.Telemetry,
		},
	}

	for _, a := range logic.Actuators {
		tm := seq.Timer(a)
		inner.Actuators = append(inner.Actuators, ActuatorJSON{
			Name:           a.String(),
			On:             tm.Active,
			ElapsedSeconds: tm.Elapsed,
			TargetSeconds:  tm.Target,
		})
	}

	if e := snap.LastEvent; e != nil {
		inner.LastEvent = &LastEventJSON{
			Stage:     e.Stage,
			Status:    e.Status,
			Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
		}
	}

	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}

	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
