package system

import (
	"math"

	"github.com/distatus/battery"

	"sysmon-agent/internal/model"
)

// readingFromBatteries folds every usable battery into one reading. ok is
// false when the host has no battery that reports a capacity. A discharging
// or empty battery means the host runs off battery power.
func readingFromBatteries(bats []*battery.Battery) (model.BatteryReading, bool) {
	var current, full, rate float64
	discharging := false
	usable := 0
	for _, b := range bats {
		if b == nil || b.Full <= 0 {
			continue
		}
		usable++
		current += b.Current
		full += b.Full
		switch b.State.Raw {
		case battery.Discharging:
			discharging = true
			rate += b.ChargeRate
		case battery.Empty:
			discharging = true
		}
	}
	if usable == 0 {
		return model.BatteryReading{}, false
	}

	pct := current / full * 100
	pct = math.Max(0, math.Min(100, pct))

	r := model.BatteryReading{Percent: pct, PowerPlugged: !discharging}
	switch {
	case r.PowerPlugged:
		r.SecsLeft = model.BatterySecsUnlimited
	case rate > 0:
		r.SecsLeft = int64(current / rate * 3600)
	default:
		r.SecsLeft = model.BatterySecsUnknown
	}
	return r, true
}
