package internal

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sweeney/irrigation-controller/internal/gpio"
	"github.com/sweeney/irrigation-controller/internal/logic"
	"github.com/sweeney/irrigation-controller/internal/mqtt"
	"github.com/sweeney/irrigation-controller/internal/status"
)

type transition struct {
	at     time.Duration
	status string
}

// simulate runs the main loop by hand at pollInterval, delivering each
// message before the tick at its offset.
type simulation struct {
	seq     *logic.Sequencer
	handler *logic.Handler
	outputs *gpio.FakeWriter
	pub     *mqtt.FakePublisher
	tracker *status.Tracker
	topics  mqtt.Topics

	start       time.Time
	transitions []transition
}

func newSimulation(settings logic.Settings) *simulation {
	start := time.Date(2026, 1, 1, 6, 0, 0, 0, time.UTC)
	seq := logic.NewSequencer(start, settings)
	return &simulation{
		seq:     seq,
		handler: logic.NewHandler(seq, func() string { return "morning" }),
		outputs: gpio.NewFakeWriter(),
		pub:     mqtt.NewFakePublisher(),
		tracker: status.NewTracker(start, status.Config{}),
		topics:  mqtt.NewTopics(mqtt.DefaultTopicPrefix),
		start:   start,
	}
}

func (s *simulation) deliver(t *testing.T, topic, payload string) {
	t.Helper()
	reply, ok := s.handler.Handle(s.topics.Command(topic), payload)
	if !ok {
		return
	}
	if err := s.pub.PublishReply(reply); err != nil {
		t.Fatalf("publish reply: %v", err)
	}
}

func (s *simulation) tick(t *testing.T, offset time.Duration) {
	t.Helper()
	for _, e := range s.seq.Tick(s.start.Add(offset)) {
		if err := s.outputs.Set(gpio.Channel(e.Actuator), e.On); err != nil {
			t.Fatalf("set output: %v", err)
		}
		if err := s.pub.PublishStatus(e); err != nil {
			t.Fatalf("publish status: %v", err)
		}
		s.tracker.RecordEvent(e)
		s.transitions = append(s.transitions, transition{at: offset, status: e.Status})
	}
	s.tracker.Update(s.seq.Snapshot())
}

// TestIntegrationFullFlow drives a complete watering cycle at 10 Hz, from the
// start command to every output switched off.
func TestIntegrationFullFlow(t *testing.T) {
	sim := newSimulation(logic.Settings{PumpDelay: 1, Solenoid1Duration: 2, Solenoid2Duration: 2})
	poll := 100 * time.Millisecond

	sim.deliver(t, "pwd-water-plants", "start")

	var sawPumpAndSolenoid bool
	for i := 1; i <= 60; i++ {
		sim.tick(t, time.Duration(i)*poll)
		if sim.outputs.On(gpio.ChannelPump) && sim.outputs.On(gpio.ChannelSolenoid1) {
			sawPumpAndSolenoid = true
		}
		if sim.outputs.On(gpio.ChannelSolenoid1) && sim.outputs.On(gpio.ChannelSolenoid2) {
			t.Fatalf("tick %d: both solenoids on", i)
		}
	}

	want := []transition{
		{100 * time.Millisecond, logic.StatusPumpOn},
		{1100 * time.Millisecond, logic.StatusSolenoid1On},
		{3100 * time.Millisecond, logic.StatusSolenoid1Off},
		{3100 * time.Millisecond, logic.StatusSolenoid2On},
		{5100 * time.Millisecond, logic.StatusSolenoid2Off},
		{5100 * time.Millisecond, logic.StatusPumpOff},
	}
	if len(sim.transitions) != len(want) {
		t.Fatalf("transitions: got %+v, want %+v", sim.transitions, want)
	}
	for i, w := range want {
		if sim.transitions[i] != w {
			t.Errorf("transition %d: got %+v, want %+v", i, sim.transitions[i], w)
		}
	}

	if !sawPumpAndSolenoid {
		t.Error("pump should run while solenoid 1 is open")
	}
	for _, ch := range []gpio.Channel{gpio.ChannelPump, gpio.ChannelSolenoid1, gpio.ChannelSolenoid2} {
		if sim.outputs.On(ch) {
			t.Errorf("%s still on after cycle", ch)
		}
	}

	wantStages := []string{"1", "2", "3", "3", "4", "4"}
	for i, raw := range sim.pub.StatusPayloads {
		var p mqtt.StatusPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			t.Fatalf("payload %d: %v", i, err)
		}
		if p.Stage != wantStages[i] {
			t.Errorf("payload %d stage: got %q, want %q", i, p.Stage, wantStages[i])
		}
	}

	snap := sim.tracker.Snapshot()
	if snap.Sequencer.State != logic.StateIdle || snap.Sequencer.CompletedCycles != 1 {
		t.Errorf("tracker: %s, %d completed", snap.Sequencer.State, snap.Sequencer.CompletedCycles)
	}
	if snap.LastEvent == nil || snap.LastEvent.Status != logic.StatusPumpOff || snap.LastEvent.CycleID != "morning" {
		t.Errorf("last event: got %+v", snap.LastEvent)
	}
}

// TestIntegrationCommandsDuringCycle checks replies on the output topic
// around a running cycle.
func TestIntegrationCommandsDuringCycle(t *testing.T) {
	sim := newSimulation(logic.Settings{PumpDelay: 1, Solenoid1Duration: 1, Solenoid2Duration: 1})

	sim.deliver(t, "pwd-configure-pump-delay", "2")
	sim.deliver(t, "pwd-water-plants", "start")
	sim.tick(t, time.Second)
	sim.deliver(t, "pwd-configure-solenoid-1-duration", "9")
	sim.deliver(t, "pwd-water-plants", "go")

	for i := 2; i <= 10; i++ {
		sim.tick(t, time.Duration(i)*time.Second)
	}
	sim.deliver(t, "pwd-water-plants", "go")

	want := []string{
		`{"success":"pump-delay-changed"}`,
		`{"success":"watering-plants-started"}`,
		`{"error":"busy"}`,
		`{"error":"busy"}`,
		`{"error":"unrecognized-message"}`,
	}
	if len(sim.pub.ReplyPayloads) != len(want) {
		t.Fatalf("replies: got %d, want %d", len(sim.pub.ReplyPayloads), len(want))
	}
	for i, w := range want {
		if string(sim.pub.ReplyPayloads[i]) != w {
			t.Errorf("reply %d: got %s, want %s", i, sim.pub.ReplyPayloads[i], w)
		}
	}
	if sim.seq.Target(logic.Solenoid1) != 1 {
		t.Errorf("solenoid 1 target changed while busy: %d", sim.seq.Target(logic.Solenoid1))
	}
	if got := sim.pub.StatusStrings(); len(got) != 6 {
		t.Errorf("expected a complete cycle, got %v", got)
	}
}

// TestIntegrationLiveRetarget shortens Solenoid 2 during Stage 1 through the
// sequencer and checks Stage 3 honours the new value.
func TestIntegrationLiveRetarget(t *testing.T) {
	sim := newSimulation(logic.Settings{PumpDelay: 1, Solenoid1Duration: 2, Solenoid2Duration: 20})

	sim.deliver(t, "pwd-water-plants", "start")
	sim.tick(t, time.Second)
	if err := sim.seq.SetTarget(logic.Solenoid2, 4); err != nil {
		t.Fatalf("SetTarget: %v", err)
	}
	for i := 2; i <= 12; i++ {
		sim.tick(t, time.Duration(i)*time.Second)
	}

	var off time.Duration
	for _, tr := range sim.transitions {
		if tr.status == logic.StatusSolenoid2Off {
			off = tr.at
		}
	}
	if off != 8*time.Second {
		t.Errorf("solenoid-2-off at %v, want 8s", off)
	}
}
