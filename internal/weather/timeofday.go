package weather

import "time"

// MinuteOfDay returns the whole minutes since midnight of ts in the device's
// current local zone. A nil ts, or one at the Unix epoch (the provider's
// "unset" value), yields nil.
func MinuteOfDay(ts *time.Time) *int {
	return MinuteOfDayIn(ts, time.Local)
}

// MinuteOfDayIn is MinuteOfDay for an explicit zone.
func MinuteOfDayIn(ts *time.Time, loc *time.Location) *int {
	if unset(ts) {
		return nil
	}
	t := ts.In(loc)
	m := t.Hour()*60 + t.Minute()
	return &m
}

// HourOfDay returns the hours since midnight of ts in the device's current
// local zone, with second precision.
func HourOfDay(ts *time.Time) *float64 {
	return HourOfDayIn(ts, time.Local)
}

// HourOfDayIn is HourOfDay for an explicit zone.
func HourOfDayIn(ts *time.Time, loc *time.Location) *float64 {
	if unset(ts) {
		return nil
	}
	t := ts.In(loc)
	h := float64(t.Hour()) + float64(t.Minute())/60 + float64(t.Second())/3600
	return &h
}

func unset(ts *time.Time) bool {
	return ts == nil || ts.Unix() == 0
}

// unixTime converts optional epoch seconds into an optional time.
func unixTime(sec *int64) *time.Time {
	if sec == nil {
		return nil
	}
	t := time.Unix(*sec, 0)
	return &t
}

// SunTimes converts optional sunrise and sunset epoch seconds into minutes
// since local midnight.
func SunTimes(sunrise, sunset *int64) (*int, *int) {
	return MinuteOfDay(unixTime(sunrise)), MinuteOfDay(unixTime(sunset))
}
