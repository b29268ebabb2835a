package alert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// BellSound writes the terminal bell character.
type BellSound struct {
	W io.Writer
}

func (b BellSound) Play(_ context.Context) error {
	if b.W == nil {
		return errors.New("bell: no writer")
	}
	_, err := io.WriteString(b.W, "\a")
	return err
}

// pinOut is the part of gpio.PinIO the buzzer drives.
type pinOut interface {
	Out(l gpio.Level) error
}

// BuzzerSound pulses an active buzzer wired to a GPIO pin (e.g. "GPIO18"
// on a Raspberry Pi).
//
// periph host drivers are initialised lazily on the first Play, so a
// missing or inaccessible GPIO chip only costs the sound, never the alert.
type BuzzerSound struct {
	pinName string
	pulse   time.Duration

	once    sync.Once
	pin     pinOut
	initErr error

	mu sync.Mutex
}

func NewBuzzerSound(pinName string, pulse time.Duration) *BuzzerSound {
	if pulse <= 0 {
		pulse = 200 * time.Millisecond
	}
	return &BuzzerSound{pinName: pinName, pulse: pulse}
}

func (b *BuzzerSound) init() {
	if b.pin != nil {
		return
	}
	if b.pinName == "" {
		b.initErr = errors.New("buzzer: gpio pin is not configured")
		return
	}
	if _, err := host.Init(); err != nil {
		b.initErr = fmt.Errorf("buzzer: periph host init: %w", err)
		return
	}
	p := gpioreg.ByName(b.pinName)
	if p == nil {
		b.initErr = fmt.Errorf("buzzer: gpio pin %q not found", b.pinName)
		return
	}
	b.pin = p
}

// Play drives the pin high for the pulse duration, or until ctx is done,
// and always leaves it low.
func (b *BuzzerSound) Play(ctx context.Context) error {
	b.once.Do(b.init)
	if b.initErr != nil {
		return b.initErr
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.pin.Out(gpio.High); err != nil {
		return fmt.Errorf("buzzer on: %w", err)
	}

	t := time.NewTimer(b.pulse)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}

	if err := b.pin.Out(gpio.Low); err != nil {
		return fmt.Errorf("buzzer off: %w", err)
	}
	return nil
}
