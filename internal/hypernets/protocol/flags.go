package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

type Operator string

const (
	OpLess         Operator = "<"
	OpGreater      Operator = ">"
	OpLessEqual    Operator = "<="
	OpGreaterEqual Operator = "=>"
)

// longest first, "<" must not shadow "<="
var operators = []Operator{OpLessEqual, OpGreaterEqual, OpLess, OpGreater}

// Condition compares one state variable against an integer threshold
type Condition struct {
	Variable  string
	Operator  Operator
	Threshold int
}

func (c Condition) String() string {
	return fmt.Sprintf("%s %s %d", c.Variable, c.Operator, c.Threshold)
}

// Eval returns ErrUndefinedVariable when the state lacks the variable
func (c Condition) Eval(state map[string]float64) (bool, error) {
	v, ok := state[c.Variable]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUndefinedVariable, c.Variable)
	}

	t := float64(c.Threshold)
	switch c.Operator {
	case OpLess:
		return v < t, nil
	case OpGreater:
		return v > t, nil
	case OpLessEqual:
		return v <= t, nil
	case OpGreaterEqual:
		return v >= t, nil
	}
	return false, fmt.Errorf("unsupported operator %q", c.Operator)
}

func matchOperator(s string) (Operator, string, bool) {
	for _, op := range operators {
		if strings.HasPrefix(s, string(op)) {
			return op, s[len(op):], true
		}
	}
	return "", s, false
}

// parseFlag reads "~name~variable:OPvalue", the assignment spelling
// "~name~variable:=OPvalue" is accepted too. Spaces are already stripped.
func parseFlag(chunk string) (string, Condition, error) {
	body := strings.TrimPrefix(chunk, "~")
	name, expr, ok := strings.Cut(body, "~")
	if !ok || name == "" {
		return "", Condition{}, fmt.Errorf("malformed flag definition %q", chunk)
	}

	variable, rest, ok := strings.Cut(expr, ":")
	if !ok || variable == "" {
		return "", Condition{}, fmt.Errorf("flag %s: missing variable", name)
	}

	op, value, found := matchOperator(rest)
	if !found && strings.HasPrefix(rest, "=") {
		op, value, found = matchOperator(rest[1:])
	}
	if !found {
		return "", Condition{}, fmt.Errorf("flag %s: operator must be one of <=, =>, <, >", name)
	}

	threshold, err := strconv.Atoi(value)
	if err != nil {
		return "", Condition{}, fmt.Errorf("flag %s: threshold %q is not an integer", name, value)
	}

	return name, Condition{Variable: variable, Operator: op, Threshold: threshold}, nil
}
