package exitcode

// Exit codes for the weather poller. A supervisor (systemd, the device init
// system) can use them to decide whether restarting makes sense.
const (
	// Success - clean shutdown
	Success = 0

	// ConfigError - missing or invalid configuration
	// Don't restart: fix the config first
	ConfigError = 1

	// StateError - the state directory is unusable
	StateError = 2

	// SinkError - a configured sink could not be initialised
	// Restart with backoff
	SinkError = 3

	// SchedulerError - the poll timer could not be started
	SchedulerError = 4
)
