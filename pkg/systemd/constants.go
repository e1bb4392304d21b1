package systemd

const (
	NotifySocketEnvVar = "NOTIFY_SOCKET"
	NotifyWatchdog     = "WATCHDOG=1"
	NotifyStopping     = "STOPPING=1"
	NotifyReady        = "READY=1"
	NotifyStatusPrefix = "STATUS="

	notifyExtendTimeoutPrefix = "EXTEND_TIMEOUT_USEC="
	notifyExitStatusPrefix    = "EXIT_STATUS="
)
