package keystroke

// TimestampUnit records how a raw timestamp was interpreted.
type TimestampUnit string

const (
	// UnitEpochMillis is milliseconds since the Unix epoch.
	UnitEpochMillis TimestampUnit = "epoch_ms"
	// UnitEpochSeconds is seconds since the Unix epoch.
	UnitEpochSeconds TimestampUnit = "epoch_s"
	// UnitRelativeMillis is milliseconds since the capture session started.
	UnitRelativeMillis TimestampUnit = "relative_ms"
)

// Unit boundaries. Both comparisons are strict.
const (
	epochMillisFloor  = 1e10
	epochSecondsFloor = 1e9
)

// ResolveTimestamp converts a raw numeric timestamp to seconds.
//
// Capture clients disagree on units, so the magnitude decides: anything above
// 1e10 is epoch milliseconds (after 1970-04-26 in ms, beyond year 2286 in s),
// anything above 1e9 is epoch seconds (after 2001-09-09), and smaller values
// are milliseconds relative to session start. Relative values cannot be
// compared with epoch values from another session.
func ResolveTimestamp(v float64) (float64, TimestampUnit) {
	switch {
	case v > epochMillisFloor:
		return v / 1000, UnitEpochMillis
	case v > epochSecondsFloor:
		return v, UnitEpochSeconds
	default:
		return v / 1000, UnitRelativeMillis
	}
}
