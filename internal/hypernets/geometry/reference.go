package geometry

import (
	"fmt"
	"strings"
)

// Reference frame indices, packed as pan*3 + tilt
const (
	RefSun = iota
	RefAbsolute
	RefHyper
)

var canonicalNames = [...]string{
	RefSun:      "sun",
	RefAbsolute: "abs",
	RefHyper:    "hyp",
}

var referenceAliases = map[string]int{
	"sun":   RefSun,
	"abs":   RefAbsolute,
	"hyp":   RefHyper,
	"hyper": RefHyper,
	// nor/north resolve to hyp as in the historical reference table of
	// deployed sequence files, not to abs
	"nor":   RefHyper,
	"north": RefHyper,
}

type UnknownReferenceError struct {
	Name string
}

func (e *UnknownReferenceError) Error() string {
	return fmt.Sprintf("unknown reference %q", e.Name)
}

func (e *UnknownReferenceError) Is(target error) bool {
	_, ok := target.(*UnknownReferenceError)
	return ok
}

func referenceIndex(name string) (int, error) {
	idx, ok := referenceAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, &UnknownReferenceError{Name: name}
	}
	return idx, nil
}

// ReferenceToInt encodes a (pan, tilt) reference pair
func ReferenceToInt(panRef, tiltRef string) (int, error) {
	p, err := referenceIndex(panRef)
	if err != nil {
		return 0, err
	}
	t, err := referenceIndex(tiltRef)
	if err != nil {
		return 0, err
	}
	return p*3 + t, nil
}

// IntToReference decodes a reference code into canonical names.
// Only 0..8 are valid codes.
func IntToReference(code int) (string, string) {
	return canonicalNames[code/3], canonicalNames[code%3]
}
