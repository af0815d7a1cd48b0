package logic

import "errors"

// Command errors. They are reported back to the sender and never stop the daemon.
var (
	ErrBusy                = errors.New("busy")
	ErrUnrecognizedCommand = errors.New("unrecognized command")
	ErrInvalidDuration     = errors.New("invalid duration")
	ErrUnknownActuator     = errors.New("unknown actuator")
)

// Command identifies an inbound control message.
type Command int

const (
	CommandUnknown Command = iota
	CommandWaterPlants
	CommandConfigurePumpDelay
	CommandConfigureSolenoid1Duration
	CommandConfigureSolenoid2Duration
)

func (c Command) String() string {
	switch c {
	case CommandWaterPlants:
		return "water-plants"
	case CommandConfigurePumpDelay:
		return "configure-pump-delay"
	case CommandConfigureSolenoid1Duration:
		return "configure-solenoid-1-duration"
	case CommandConfigureSolenoid2Duration:
		return "configure-solenoid-2-duration"
	default:
		return "unknown"
	}
}

// StartToken is the only payload accepted by CommandWaterPlants.
const StartToken = "start"

// Reply codes sent back on the output topic.
const (
	CodeStarted                  = "watering-plants-started"
	CodePumpDelayChanged         = "pump-delay-changed"
	CodeSolenoid1DurationChanged = "solenoid-1-duration-changed"
	CodeSolenoid2DurationChanged = "solenoid-2-duration-changed"
	CodeBusy                     = "busy"
	CodeUnrecognizedMessage      = "unrecognized-message"
	CodeWrongDelay               = "wrong-delay"
	CodeWrongDuration            = "wrong-duration"
)

// Reply is the acknowledgement for a handled command.
// Err is nil for success replies.
type Reply struct {
	Command Command
	Code    string
	Err     error
}

// OK reports whether the reply acknowledges success.
func (r Reply) OK() bool {
	return r.Err == nil
}

// configTarget binds a configure command to its actuator and reply codes.
type configTarget struct {
	actuator Actuator
	success  string
	failure  string
}

var configTargets = map[Command]configTarget{
	CommandConfigurePumpDelay:         {Pump, CodePumpDelayChanged, CodeWrongDelay},
	CommandConfigureSolenoid1Duration: {Solenoid1, CodeSolenoid1DurationChanged, CodeWrongDuration},
	CommandConfigureSolenoid2Duration: {Solenoid2, CodeSolenoid2DurationChanged, CodeWrongDuration},
}

// Handler validates commands against the Sequencer state and applies them.
type Handler struct {
	seq     *Sequencer
	cycleID func() string
}

// NewHandler creates a Handler mutating seq. newCycleID names each started
// cycle; it may be nil.
func NewHandler(seq *Sequencer, newCycleID func() string) *Handler {
	if newCycleID == nil {
		newCycleID = func() string { return "" }
	}
	return &Handler{seq: seq, cycleID: newCycleID}
}

// Handle processes one inbound command. The bool result is false when the
// command produces no acknowledgement (unknown command while idle).
func (h *Handler) Handle(cmd Command, payload string) (Reply, bool) {
	if h.seq.Busy() {
		return Reply{Command: cmd, Code: CodeBusy, Err: ErrBusy}, true
	}

	if cmd == CommandWaterPlants {
		if payload != StartToken {
			return Reply{Command: cmd, Code: CodeUnrecognizedMessage, Err: ErrUnrecognizedCommand}, true
		}
		h.seq.Start(h.cycleID())
		return Reply{Command: cmd, Code: CodeStarted}, true
	}

	target, ok := configTargets[cmd]
	if !ok {
		return Reply{}, false
	}
	if err := h.seq.SetTarget(target.actuator, ParseSeconds(payload)); err != nil {
		return Reply{Command: cmd, Code: target.failure, Err: err}, true
	}
	return Reply{Command: cmd, Code: target.success}, true
}

// ParseSeconds reads a leading decimal integer. Leading whitespace and one
// sign are allowed, parsing stops at the first non-digit, and a payload
// without digits yields 0.
func ParseSeconds(payload string) int {
	i := 0
	for i < len(payload) && isSpace(payload[i]) {
		i++
	}
	neg := false
	if i < len(payload) && (payload[i] == '+' || payload[i] == '-') {
		neg = payload[i] == '-'
		i++
	}
	const limit = 1<<31 - 1
	n := 0
	for ; i < len(payload) && payload[i] >= '0' && payload[i] <= '9'; i++ {
		n = n*10 + int(payload[i]-'0')
		if n > limit {
			// Out of range is never a usable duration.
			return 0
		}
	}
	if neg {
		return -n
	}
	return n
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
