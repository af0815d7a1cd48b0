package logic

import "time"

// counterInterval is the wall-clock time between timer increments.
const counterInterval = time.Second

// Sequencer owns the cycle state, the current stage and the actuator timers.
// Not safe for concurrent use; the daemon drives it from a single goroutine.
type Sequencer struct {
	state      CycleState
	stage      Stage
	cycleID    string
	timers     [actuatorCount]Timer
	match      MatchMode
	lastUpdate time.Time
	completed  int
}

// NewSequencer creates an idle Sequencer. The now argument seeds the
// counter clock; the first increment happens one interval later.
func NewSequencer(now time.Time, s Settings) *Sequencer {
	seq := &Sequencer{
		state:      StateIdle,
		stage:      StageIdle,
		match:      s.Match,
		lastUpdate: now,
	}
	if seq.match == "" {
		seq.match = MatchExact
	}
	seq.timers[Pump].Target = orDefault(s.PumpDelay, DefaultPumpDelay)
	seq.timers[Solenoid1].Target = orDefault(s.Solenoid1Duration, DefaultSolenoid1Duration)
	seq.timers[Solenoid2].Target = orDefault(s.Solenoid2Duration, DefaultSolenoid2Duration)
	return seq
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// Start marks the sequencer busy. Stage 1 fires on the next Tick.
// Returns false if a cycle is already running.
func (s *Sequencer) Start(cycleID string) bool {
	if s.state == StateBusy {
		return false
	}
	s.state = StateBusy
	s.cycleID = cycleID
	return true
}

// Busy reports whether a cycle is in progress.
func (s *Sequencer) Busy() bool {
	return s.state == StateBusy
}

// SetTarget changes the target duration of an actuator. The new value is
// read by the next Tick, including during a running cycle.
func (s *Sequencer) SetTarget(a Actuator, seconds int) error {
	if a < 0 || a >= actuatorCount {
		return ErrUnknownActuator
	}
	if seconds <= 0 {
		return ErrInvalidDuration
	}
	s.timers[a].Target = seconds
	return nil
}

// Target returns the configured duration of an actuator in seconds.
func (s *Sequencer) Target(a Actuator) int {
	return s.timers[a].Target
}

// Tick advances the cycle. The stage checks run in a fixed order before the
// counters are incremented, so at most one stage transition happens per tick
// under normal cadence and its events precede any counting for the new stage.
func (s *Sequencer) Tick(now time.Time) []Event {
	var events []Event

	if s.state == StateBusy && s.stage == StageIdle {
		s.stage = StagePumpOn
		events = append(events, s.activate(now, Pump, StagePumpOn, StatusPumpOn))
	}

	if s.stage == StagePumpOn && s.reached(Pump) {
		// The pump keeps running through both solenoid stages.
		s.stage = StageSolenoid1On
		events = append(events, s.activate(now, Solenoid1, StageSolenoid1On, StatusSolenoid1On))
	}

	if s.stage == StageSolenoid1On && s.reached(Solenoid1) {
		s.stage = StageSolenoid2On
		events = append(events,
			s.deactivate(now, Solenoid1, int(StageSolenoid2On), StatusSolenoid1Off),
			s.activate(now, Solenoid2, StageSolenoid2On, StatusSolenoid2On),
		)
	}

	if s.stage == StageSolenoid2On && s.reached(Solenoid2) {
		s.stage = StageIdle
		s.state = StateIdle
		events = append(events,
			s.deactivate(now, Solenoid2, StageComplete, StatusSolenoid2Off),
			s.deactivate(now, Pump, StageComplete, StatusPumpOff),
		)
		s.completed++
		s.cycleID = ""
	}

	if now.Sub(s.lastUpdate) >= counterInterval {
		for i := range s.timers {
			if s.timers[i].Active {
				s.timers[i].Elapsed++
			}
		}
		s.lastUpdate = now
	}

	return events
}

func (s *Sequencer) reached(a Actuator) bool {
	t := s.timers[a]
	if s.match == MatchAtLeast {
		return t.Elapsed >= t.Target
	}
	return t.Elapsed == t.Target
}

func (s *Sequencer) activate(now time.Time, a Actuator, stage Stage, status string) Event {
	s.timers[a].Active = true
	return Event{
		Timestamp: now,
		CycleID:   s.cycleID,
		Stage:     int(stage),
		Status:    status,
		Actuator:  a,
		On:        true,
	}
}

func (s *Sequencer) deactivate(now time.Time, a Actuator, stage int, status string) Event {
	s.timers[a].Active = false
	s.timers[a].Elapsed = 0
	return Event{
		Timestamp: now,
		CycleID:   s.cycleID,
		Stage:     stage,
		Status:    status,
		Actuator:  a,
		On:        false,
	}
}

// Snapshot returns a copy of the current state.
func (s *Sequencer) Snapshot() Snapshot {
	return Snapshot{
		State:           s.state,
		Stage:           s.stage,
		CycleID:         s.cycleID,
		Timers:          s.timers,
		CompletedCycles: s.completed,
		Match:           s.match,
	}
}
