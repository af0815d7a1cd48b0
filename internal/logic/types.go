// Package logic contains the pure watering sequence and command handling.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"fmt"
	"time"
)

// CycleState reports whether a watering cycle is in progress.
type CycleState string

const (
	StateIdle CycleState = "IDLE"
	StateBusy CycleState = "BUSY"
)

// Stage is one phase of the watering cycle. Stages only move forward and
// wrap back to StageIdle when the cycle completes.
type Stage int

const (
	StageIdle        Stage = 0
	StagePumpOn      Stage = 1
	StageSolenoid1On Stage = 2
	StageSolenoid2On Stage = 3
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StagePumpOn:
		return "pump-on"
	case StageSolenoid1On:
		return "solenoid-1-on"
	case StageSolenoid2On:
		return "solenoid-2-on"
	default:
		return fmt.Sprintf("stage-%d", int(s))
	}
}

// Actuator identifies one of the driven outputs.
type Actuator int

const (
	Pump Actuator = iota
	Solenoid1
	Solenoid2

	actuatorCount
)

// Actuators lists every actuator in wiring order.
var Actuators = [actuatorCount]Actuator{Pump, Solenoid1, Solenoid2}

func (a Actuator) String() string {
	switch a {
	case Pump:
		return "pump"
	case Solenoid1:
		return "solenoid-1"
	case Solenoid2:
		return "solenoid-2"
	default:
		return fmt.Sprintf("actuator-%d", int(a))
	}
}

// Default target durations in seconds.
const (
	DefaultPumpDelay         = 1
	DefaultSolenoid1Duration = 20
	DefaultSolenoid2Duration = 20
)

// Timer tracks how long an actuator has been on during the current cycle.
// Elapsed only grows while Active and is reset when the actuator is switched off.
type Timer struct {
	Active  bool
	Elapsed int
	Target  int
}

// MatchMode selects how a timer is compared against its target.
type MatchMode string

const (
	// MatchExact advances a stage only when Elapsed == Target. A counter
	// that moves past its target without hitting it stalls the cycle.
	MatchExact MatchMode = "exact"
	// MatchAtLeast advances a stage once Elapsed >= Target.
	MatchAtLeast MatchMode = "at-least"
)

// ParseMatchMode converts a configuration string into a MatchMode.
func ParseMatchMode(s string) (MatchMode, error) {
	switch MatchMode(s) {
	case MatchExact, MatchAtLeast:
		return MatchMode(s), nil
	case "":
		return MatchExact, nil
	default:
		return "", fmt.Errorf("unknown match mode %q (want %q or %q)", s, MatchExact, MatchAtLeast)
	}
}

// Status values published with each stage transition.
const (
	StatusPumpOn       = "pump-on"
	StatusPumpOff      = "pump-off"
	StatusSolenoid1On  = "solenoid-1-on"
	StatusSolenoid1Off = "solenoid-1-off"
	StatusSolenoid2On  = "solenoid-2-on"
	StatusSolenoid2Off = "solenoid-2-off"
)

// StageComplete is the stage number reported for the end-of-cycle events.
const StageComplete = 4

// Event is a single actuator transition emitted by the Sequencer.
// The caller drives the output and publishes the status.
type Event struct {
	Timestamp time.Time
	CycleID   string
	Stage     int // reported stage, 1..4
	Status    string
	Actuator  Actuator
	On        bool
}

// Settings configures a Sequencer.
type Settings struct {
	PumpDelay         int
	Solenoid1Duration int
	Solenoid2Duration int
	Match             MatchMode
}

// DefaultSettings returns the power-on defaults.
func DefaultSettings() Settings {
	return Settings{
		PumpDelay:         DefaultPumpDelay,
		Solenoid1Duration: DefaultSolenoid1Duration,
		Solenoid2Duration: DefaultSolenoid2Duration,
		Match:             MatchExact,
	}
}

// Snapshot is a point-in-time copy of the Sequencer state.
type Snapshot struct {
	State           CycleState
	Stage           Stage
	CycleID         string
	Timers          [actuatorCount]Timer
	CompletedCycles int
	Match           MatchMode
}

// Timer returns the timer for the given actuator.
func (s Snapshot) Timer(a Actuator) Timer {
	return s.Timers[a]
}
