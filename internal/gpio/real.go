//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

const consumer = "irrigation-controller"

// RealWriter drives actual hardware using the Linux GPIO character device.
type RealWriter struct {
	chip  *gpiocdev.Chip
	lines [channelCount]*gpiocdev.Line
}

// NewRealWriter requests the output lines on the given chip. Every line
// starts HIGH so no actuator is energised before the first command.
func NewRealWriter(chipName string, pins Pins) (*RealWriter, error) {
	if err := pins.Validate(); err != nil {
		return nil, err
	}

	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	w := &RealWriter{chip: chip}
	for i, off := range pins.offsets() {
		line, err := chip.RequestLine(off, gpiocdev.AsOutput(LevelOff))
		if err != nil {
			w.Close()
			return nil, fmt.Errorf("request %s pin %d: %w", Channel(i), off, err)
		}
		w.lines[i] = line
	}
	return w, nil
}

// Set drives the channel's line to the active-low level for on.
func (w *RealWriter) Set(ch Channel, on bool) error {
	if ch < 0 || ch >= channelCount || w.lines[ch] == nil {
		return fmt.Errorf("set %s: no such output", ch)
	}
	if err := w.lines[ch].SetValue(Level(on)); err != nil {
		return fmt.Errorf("set %s: %w", ch, err)
	}
	return nil
}

// Close drives every line HIGH (off) and releases the lines and chip.
func (w *RealWriter) Close() error {
	var errs []error

	for i, line := range w.lines {
		if line == nil {
			continue
		}
		if err := line.SetValue(LevelOff); err != nil {
			errs = append(errs, fmt.Errorf("switch off %s: %w", Channel(i), err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", Channel(i), err))
		}
		w.lines[i] = nil
	}
	if w.chip != nil {
		if err := w.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		w.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
