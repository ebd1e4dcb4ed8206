package vfs

import "time"

// Clock supplies the current time to the engine. Tests substitute a fake
// clock to make creation_time/last_write_time assertions deterministic.
type Clock interface {
	// NowSeconds returns seconds since the Unix epoch.
	NowSeconds() uint64
}

// systemClock is the default Clock, backed by the host's wall clock.
type systemClock struct{}

func (systemClock) NowSeconds() uint64 {
	return uint64(time.Now().Unix())
}
