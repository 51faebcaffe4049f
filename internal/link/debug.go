package link

import "sync/atomic"

// debugSends controls whether every transmitted frame is logged.
var debugSends atomic.Bool

// SetDebugLogging enables/disables per-send logs. Drops are always logged.
func SetDebugLogging(enabled bool) {
	debugSends.Store(enabled)
}

// debugEnabled reports whether per-send logs are enabled.
func debugEnabled() bool {
	return debugSends.Load()
}
