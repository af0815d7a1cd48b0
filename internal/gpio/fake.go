package gpio

import "fmt"

// Write records a single Set call.
type Write struct {
	Channel Channel
	On      bool
}

// FakeWriter is a test double that records output changes.
type FakeWriter struct {
	// Levels holds the raw line value per channel (LevelOff initially).
	Levels [channelCount]int

	// Writes contains every successful Set call in order.
	Writes []Write

	// SetError, if set, will be returned by Set.
	SetError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeWriter creates a FakeWriter with every output off.
func NewFakeWriter() *FakeWriter {
	f := &FakeWriter{}
	for i := range f.Levels {
		f.Levels[i] = LevelOff
	}
	return f
}

// Set records the new level.
func (f *FakeWriter) Set(ch Channel, on bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	if ch < 0 || ch >= channelCount {
		return fmt.Errorf("set %s: no such output", ch)
	}
	f.Levels[ch] = Level(on)
	f.Writes = append(f.Writes, Write{Channel: ch, On: on})
	return nil
}

// On reports whether the channel is currently energised.
func (f *FakeWriter) On(ch Channel) bool {
	return f.Levels[ch] == LevelOn
}

// Close switches every output off, like the real writer.
func (f *FakeWriter) Close() error {
	for i := range f.Levels {
		f.Levels[i] = LevelOff
	}
	f.Closed = true
	return nil
}

// Reset clears recorded writes and restores all outputs to off.
func (f *FakeWriter) Reset() {
	for i := range f.Levels {
		f.Levels[i] = LevelOff
	}
	f.Writes = nil
	f.SetError = nil
	f.Closed = false
}
