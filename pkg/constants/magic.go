package constants

import "time"

const (
	// Reported as hypernets_tools_version in every metadata header
	HYPERNETS_TOOLS_VERSION = "2.1.0"

	SEQUENCE_SERVICE_NAME = "hypernets-sequence.service"

	// Nadir, where the head is parked before any abort
	PARK_TILT = 0.0

	// Instrument boot is declared failed after this long
	INSTRUMENT_BOOT_TIMEOUT = 30 * time.Second

	SWIR_TEC_ATTEMPTS = 5
	SWIR_TEC_INTERVAL = 5 * time.Second

	POWER_WATCHDOG_INTERVAL = 10 * time.Second
	LIGHT_LOGGER_INTERVAL   = time.Second

	POINTING_TOLERANCE = 1.0
	POINTING_ATTEMPTS  = 2

	// pt_ref value when the head did not report its final position
	UNKNOWN_POSITION = -999.0
)
