package gpio

import (
	"errors"
	"testing"
)

func TestFakeWriterStartsOff(t *testing.T) {
	f := NewFakeWriter()
	for ch := ChannelPump; ch < channelCount; ch++ {
		if f.Levels[ch] != LevelOff {
			t.Errorf("%s: expected raw HIGH (off), got %d", ch, f.Levels[ch])
		}
		if f.On(ch) {
			t.Errorf("%s should be off", ch)
		}
	}
}

func TestFakeWriterActiveLow(t *testing.T) {
	f := NewFakeWriter()

	if err := f.Set(ChannelSolenoid1, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Levels[ChannelSolenoid1] != 0 {
		t.Errorf("on should drive LOW, got %d", f.Levels[ChannelSolenoid1])
	}

	if err := f.Set(ChannelSolenoid1, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Levels[ChannelSolenoid1] != 1 {
		t.Errorf("off should drive HIGH, got %d", f.Levels[ChannelSolenoid1])
	}

	if len(f.Writes) != 2 {
		t.Fatalf("expected 2 writes, got %d", len(f.Writes))
	}
	if f.Writes[0] != (Write{ChannelSolenoid1, true}) {
		t.Errorf("write 0: got %+v", f.Writes[0])
	}
}

func TestFakeWriterError(t *testing.T) {
	f := NewFakeWriter()
	f.SetError = errors.New("line busy")

	if err := f.Set(ChannelPump, true); err == nil {
		t.Error("expected error")
	}
	if f.On(ChannelPump) {
		t.Error("level should not change on error")
	}
	if len(f.Writes) != 0 {
		t.Errorf("expected no writes recorded on error, got %d", len(f.Writes))
	}
}

func TestFakeWriterUnknownChannel(t *testing.T) {
	f := NewFakeWriter()
	if err := f.Set(Channel(5), true); err == nil {
		t.Error("expected error for unknown channel")
	}
}

func TestFakeWriterCloseSwitchesOff(t *testing.T) {
	f := NewFakeWriter()
	f.Set(ChannelPump, true)
	f.Set(ChannelSolenoid2, true)

	if err := f.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.Closed {
		t.Error("should be closed after Close()")
	}
	if f.On(ChannelPump) || f.On(ChannelSolenoid2) {
		t.Error("outputs should be off after Close()")
	}
}

func TestFakeWriterReset(t *testing.T) {
	f := NewFakeWriter()
	f.Set(ChannelPump, true)
	f.Close()
	f.SetError = errors.New("error")

	f.Reset()

	if len(f.Writes) != 0 {
		t.Error("writes should be cleared")
	}
	if f.Closed {
		t.Error("closed should be reset")
	}
	if f.SetError != nil {
		t.Error("error should be cleared")
	}
}

func TestLevel(t *testing.T) {
	if Level(true) != 0 {
		t.Errorf("Level(true) = %d, want 0", Level(true))
	}
	if Level(false) != 1 {
		t.Errorf("Level(false) = %d, want 1", Level(false))
	}
}

func TestPinsValidate(t *testing.T) {
	if err := DefaultPins().Validate(); err != nil {
		t.Errorf("default pins invalid: %v", err)
	}
	if err := (Pins{Pump: 17, Solenoid1: 17, Solenoid2: 22}).Validate(); err == nil {
		t.Error("expected error for duplicate pin")
	}
	if err := (Pins{Pump: -1, Solenoid1: 27, Solenoid2: 22}).Validate(); err == nil {
		t.Error("expected error for negative pin")
	}
}

func TestChannelString(t *testing.T) {
	tests := map[Channel]string{
		ChannelPump:      "pump",
		ChannelSolenoid1: "solenoid-1",
		ChannelSolenoid2: "solenoid-2",
		Channel(9):       "channel-9",
	}
	for ch, want := range tests {
		if got := ch.String(); got != want {
			t.Errorf("Channel(%d).String() = %q, want %q", int(ch), got, want)
		}
	}
}
