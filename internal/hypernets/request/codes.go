package request

import (
	"fmt"
	"strings"
)

type Action int

const (
	ActionNone Action = iota
	ActionMeasurement
	ActionPicture
	ActionValidation
)

func (a Action) String() string {
	switch a {
	case ActionMeasurement:
		return "measurement"
	case ActionPicture:
		return "picture"
	case ActionValidation:
		return "validation"
	default:
		return "none"
	}
}

type Radiometer int

const (
	RadiometerNone Radiometer = iota
	RadiometerVNIR
	RadiometerSWIR
	RadiometerBoth
)

func (r Radiometer) String() string {
	switch r {
	case RadiometerVNIR:
		return "VIS_NIR"
	case RadiometerSWIR:
		return "SWIR"
	case RadiometerBoth:
		return "BOTH"
	default:
		return "NONE"
	}
}

// Code is the byte used in spectra file names
func (r Radiometer) Code() int {
	switch r {
	case RadiometerSWIR:
		return 0x40
	case RadiometerVNIR:
		return 0x80
	case RadiometerBoth:
		return 0xC0
	default:
		return 0x00
	}
}

// HasVNIR reports whether the visible channel is captured
func (r Radiometer) HasVNIR() bool {
	return r == RadiometerVNIR || r == RadiometerBoth
}

// HasSWIR reports whether the infrared channel is captured
func (r Radiometer) HasSWIR() bool {
	return r == RadiometerSWIR || r == RadiometerBoth
}

type Entrance int

const (
	EntranceNone Entrance = iota
	EntranceRadiance
	EntranceIrradiance
	EntranceDark
	EntrancePicture
	EntranceValidation
)

func (e Entrance) String() string {
	switch e {
	case EntranceRadiance:
		return "RADIANCE"
	case EntranceIrradiance:
		return "IRRADIANCE"
	case EntranceDark:
		return "DARK"
	case EntrancePicture:
		return "PICTURE"
	case EntranceValidation:
		return "VALIDATION"
	default:
		return "NONE"
	}
}

// Code is the byte used in spectra file names
func (e Entrance) Code() int {
	switch e {
	case EntranceDark:
		return 0x00
	case EntranceRadiance:
		return 0x10
	case EntranceIrradiance:
		return 0x08
	case EntrancePicture:
		return 0x02
	case EntranceValidation:
		return 0x04
	default:
		return 0x03
	}
}

var radiometerCodes = map[string]Radiometer{
	"vis":  RadiometerVNIR,
	"vnir": RadiometerVNIR,
	"swi":  RadiometerSWIR,
	"swir": RadiometerSWIR,
	"bot":  RadiometerBoth,
	"both": RadiometerBoth,
	"non":  RadiometerNone,
}

var entranceCodes = map[string]Entrance{
	"rad":  EntranceRadiance,
	"irr":  EntranceIrradiance,
	"bla":  EntranceDark,
	"dar":  EntranceDark,
	"dark": EntranceDark,
	"pic":  EntrancePicture,
	"val":  EntranceValidation,
	"vm":   EntranceValidation,
	"non":  EntranceNone,
}

// UnknownCodeError is returned for tokens missing from the code tables
type UnknownCodeError struct {
	Kind string
	Code string
}

func (e *UnknownCodeError) Error() string {
	return fmt.Sprintf("unknown %s code %q", e.Kind, e.Code)
}

func (e *UnknownCodeError) Is(target error) bool {
	_, ok := target.(*UnknownCodeError)
	return ok
}

// ParseRadiometer looks up a case-insensitive radiometer alias
func ParseRadiometer(code string) (Radiometer, error) {
	r, ok := radiometerCodes[strings.ToLower(code)]
	if !ok {
		return RadiometerNone, &UnknownCodeError{Kind: "radiometer", Code: code}
	}
	return r, nil
}

// ParseEntrance looks up a case-insensitive entrance alias
func ParseEntrance(code string) (Entrance, error) {
	e, ok := entranceCodes[strings.ToLower(code)]
	if !ok {
		return EntranceNone, &UnknownCodeError{Kind: "entrance", Code: code}
	}
	return e, nil
}
