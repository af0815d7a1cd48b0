// Package gpio drives the actuator outputs with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "fmt"

// Channel identifies one output line.
type Channel int

const (
	ChannelPump Channel = iota
	ChannelSolenoid1
	ChannelSolenoid2

	channelCount
)

func (c Channel) String() string {
	switch c {
	case ChannelPump:
		return "pump"
	case ChannelSolenoid1:
		return "solenoid-1"
	case ChannelSolenoid2:
		return "solenoid-2"
	default:
		return fmt.Sprintf("channel-%d", int(c))
	}
}

// Writer sets actuator outputs.
type Writer interface {
	// Set switches a channel on or off (logical level).
	// The outputs are active-low: on drives the line LOW.
	Set(ch Channel, on bool) error

	// Close switches every output off and releases GPIO resources.
	Close() error
}

// Raw line levels. The relay board energises on LOW.
const (
	LevelOn  = 0
	LevelOff = 1
)

// Level converts a logical state into the raw line value.
func Level(on bool) int {
	if on {
		return LevelOn
	}
	return LevelOff
}

// Default pin definitions (BCM numbering).
const (
	DefaultChip         = "gpiochip0"
	DefaultPinPump      = 17
	DefaultPinSolenoid1 = 27
	DefaultPinSolenoid2 = 22
)

// Pins maps each channel to a line offset on the chip.
type Pins struct {
	Pump      int
	Solenoid1 int
	Solenoid2 int
}

// DefaultPins returns the standard wiring.
func DefaultPins() Pins {
	return Pins{
		Pump:      DefaultPinPump,
		Solenoid1: DefaultPinSolenoid1,
		Solenoid2: DefaultPinSolenoid2,
	}
}

func (p Pins) offsets() [channelCount]int {
	return [channelCount]int{p.Pump, p.Solenoid1, p.Solenoid2}
}

// Validate checks that every pin is non-negative and distinct.
func (p Pins) Validate() error {
	seen := make(map[int]Channel)
	for i, off := range p.offsets() {
		ch := Channel(i)
		if off < 0 {
			return fmt.Errorf("%s pin %d: must not be negative", ch, off)
		}
		if other, dup := seen[off]; dup {
			return fmt.Errorf("%s pin %d: already used by %s", ch, off, other)
		}
		seen[off] = ch
	}
	return nil
}
