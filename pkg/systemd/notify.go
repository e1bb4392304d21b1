package systemd

import (
	"errors"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hypernets/sequencer/pkg/log"
)

var ErrNoNotifySocket = errors.New("systemd-notify socket was not available")

// EntertainWatchdog sends a notification to the systemd watchdog
func EntertainWatchdog() error {
	log.Debug("Notifying systemd watchdog")
	return Notify(NotifyWatchdog)
}

// Status publishes a free form status line, shown by systemctl status
func Status(text string) error {
	return Notify(NotifyStatusPrefix + text)
}

// ExtendTimeout asks systemd for more time before it considers the unit
// hung, long sequences outlast the default start timeout.
func ExtendTimeout(d time.Duration) error {
	return Notify(notifyExtendTimeoutPrefix + strconv.FormatInt(d.Microseconds(), 10))
}

// Stopping reports the sequence exit code together with STOPPING=1
func Stopping(exitCode int, status string) error {
	return Notify(NotifyStopping,
		notifyExitStatusPrefix+strconv.Itoa(exitCode),
		NotifyStatusPrefix+status)
}

// Notify sends the assignments as one datagram to the systemd socket
func Notify(msgs ...string) error {
	name := os.Getenv(NotifySocketEnvVar)
	if name == "" {
		return ErrNoNotifySocket
	}

	conn, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Net: "unixgram", Name: name})
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.Write([]byte(strings.Join(msgs, "\n")))
	return err
}
