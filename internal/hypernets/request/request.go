package request

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DefaultVMCurrent is the validation LED current when none is given
const DefaultVMCurrent = 1000

var (
	ErrInvalidValidation = errors.New("invalid validation request")
	ErrTokenCount        = errors.New("wrong number of request tokens")
)

// Request is one action taken at a geometry
type Request struct {
	Action     Action
	Radiometer Radiometer
	Entrance   Entrance

	// Integration times in ms, 0 selects automatic exposure.
	// The instrument writes back the value it used.
	ITVNIR int
	ITSWIR int

	NumberCap            int
	TotalMeasurementTime int
	VMCurrentMA          int
}

func parseInt(name, value string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", name, value)
	}
	return v, nil
}

// FromParams builds a request from a repetition count and the measurement
// tokens of a sequence line: ("picture"), (radiometer, entrance, it_vnir,
// it_swir) or ("validation", radiometer, entrance, it_vnir, it_swir[, current_ma]).
func FromParams(numberCap int, tokens ...string) (*Request, error) {
	r := &Request{NumberCap: numberCap, VMCurrentMA: DefaultVMCurrent}

	if len(tokens) == 1 && strings.EqualFold(tokens[0], "picture") {
		r.Action = ActionPicture
		r.Radiometer = RadiometerNone
		r.Entrance = EntrancePicture
		return r, nil
	}

	r.Action = ActionMeasurement
	if len(tokens) > 0 && strings.EqualFold(tokens[0], "validation") {
		r.Action = ActionValidation
		tokens = tokens[1:]

		if len(tokens) == 5 {
			current, err := parseInt("vm current", tokens[4])
			if err != nil {
				return nil, err
			}
			r.VMCurrentMA = current
			tokens = tokens[:4]
		}
	}

	if len(tokens) != 4 {
		return nil, fmt.Errorf("%w: got %d, want radiometer, entrance, it_vnir, it_swir", ErrTokenCount, len(tokens))
	}

	var err error
	if r.Radiometer, err = ParseRadiometer(tokens[0]); err != nil {
		return nil, err
	}
	if r.Entrance, err = ParseEntrance(tokens[1]); err != nil {
		return nil, err
	}
	if r.ITVNIR, err = parseInt("it_vnir", tokens[2]); err != nil {
		return nil, err
	}
	if r.ITSWIR, err = parseInt("it_swir", tokens[3]); err != nil {
		return nil, err
	}

	if r.Action == ActionMeasurement {
		r.Action = actionFor(r.Radiometer, r.Entrance)
	}

	if err := r.validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// FromLine builds a request from the v1 columns mode, action, it, repeat
// and total time. One integration time is used for both channels.
func FromLine(fields []string) (*Request, error) {
	if len(fields) < 5 {
		return nil, fmt.Errorf("%w: got %d, want mode, action, it, repeat, total", ErrTokenCount, len(fields))
	}

	r := &Request{VMCurrentMA: DefaultVMCurrent}

	var err error
	if r.Radiometer, err = ParseRadiometer(strings.TrimSpace(fields[0])); err != nil {
		return nil, err
	}
	if r.Entrance, err = ParseEntrance(strings.TrimSpace(fields[1])); err != nil {
		return nil, err
	}
	if r.ITVNIR, err = parseInt("it", fields[2]); err != nil {
		return nil, err
	}
	r.ITSWIR = r.ITVNIR
	if r.NumberCap, err = parseInt("repeat", fields[3]); err != nil {
		return nil, err
	}
	if r.TotalMeasurementTime, err = parseInt("total", fields[4]); err != nil {
		return nil, err
	}

	r.Action = actionFor(r.Radiometer, r.Entrance)
	return r, nil
}

func actionFor(rad Radiometer, ent Entrance) Action {
	switch {
	case ent == EntrancePicture:
		return ActionPicture
	case rad == RadiometerNone && ent == EntranceNone:
		return ActionNone
	default:
		return ActionMeasurement
	}
}

func (r *Request) validate() error {
	if r.Action != ActionValidation {
		return nil
	}
	if r.Radiometer.HasSWIR() {
		return fmt.Errorf("%w: validation is only supported on VIS_NIR, got %s", ErrInvalidValidation, r.Radiometer)
	}
	if r.Entrance == EntranceDark {
		return fmt.Errorf("%w: dark entrance", ErrInvalidValidation)
	}
	return nil
}

// IsDark reports whether the request measures the dark signal
func (r *Request) IsDark() bool {
	return r.Action == ActionMeasurement && r.Entrance == EntranceDark
}

func (r *Request) String() string {
	if r.Action == ActionPicture {
		return fmt.Sprintf("%d.picture", r.NumberCap)
	}

	s := fmt.Sprintf("%d.", r.NumberCap)
	if r.Action == ActionValidation {
		s += "validation."
	}
	return s + fmt.Sprintf("%s.%s.%d.%d", r.Radiometer, r.Entrance, r.ITVNIR, r.ITSWIR)
}
