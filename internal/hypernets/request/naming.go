package request

import (
	"fmt"
	"time"
)

const (
	TimestampLayout = "20060102T150405"

	ExtSpectrum = ".spe"
	ExtPicture  = ".jpg"
)

// SpectraName returns the file name for the output of the request.
// An empty prefix is replaced by the UTC timestamp of now.
func (r *Request) SpectraName(prefix string, now time.Time) string {
	if prefix == "" {
		prefix = now.UTC().Format(TimestampLayout)
	}

	if r.Action == ActionPicture {
		return prefix + ExtPicture
	}

	return fmt.Sprintf("%s_%03d_%02d_%04d_%02d_%04d%s",
		prefix, r.Radiometer.Code(), r.Entrance.Code(), r.ITVNIR, r.NumberCap, r.TotalMeasurementTime, ExtSpectrum)
}
