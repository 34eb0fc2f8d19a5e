package scheduler

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Waker asks the device to wake from suspend in time for a tick.
type Waker interface {
	Reserve(at time.Time) error
	Release() error
}

// NopWaker is used when waking the device is disabled.
type NopWaker struct{}

func (NopWaker) Reserve(time.Time) error { return nil }
func (NopWaker) Release() error          { return nil }

// DefaultWakeAlarm is the sysfs wake alarm of the first real-time clock.
const DefaultWakeAlarm = "/sys/class/rtc/rtc0/wakealarm"

// RTCWaker programs a Linux RTC wake alarm.
type RTCWaker struct {
	path string
}

func NewRTCWaker(path string) *RTCWaker {
	if path == "" {
		path = DefaultWakeAlarm
	}
	return &RTCWaker{path: path}
}

// Reserve replaces any pending alarm with one at the given time. The kernel
// refuses to overwrite an armed alarm, so it is cleared first.
func (w *RTCWaker) Reserve(at time.Time) error {
	if err := w.write("0"); err != nil {
		return err
	}
	return w.write(strconv.FormatInt(at.Unix(), 10))
}

func (w *RTCWaker) Release() error {
	return w.write("0")
}

func (w *RTCWaker) write(v string) error {
	if err := os.WriteFile(w.path, []byte(v), 0o644); err != nil {
		return fmt.Errorf("rtc wake alarm: %w", err)
	}
	return nil
}
