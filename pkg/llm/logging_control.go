package llm

import "sync/atomic"

var verboseLogging atomic.Bool

// SetVerboseLogging toggles whether openaiclient.go's doChat echoes full strategy-parse
// and signal-generation prompts/responses through logx. NewClient calls this from
// Config.VerboseLogging (etc/llm.yaml's verbose_logging, or ZENMUX_VERBOSE_LOGGING) on
// every client construction, so the effective setting always matches the most
// recently loaded config rather than whatever a previous client left behind.
func SetVerboseLogging(enabled bool) {
	if enabled {
		verboseLogging.Store(true)
		return
	}
	verboseLogging.Store(false)
}

func isVerboseLoggingEnabled() bool {
	return verboseLogging.Load()
}
