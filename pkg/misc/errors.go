package misc

import (
	"errors"
	"fmt"
	"time"
)

// TimedOutError is returned when hardware did not answer within Limit
type TimedOutError struct {
	Op    string
	Limit time.Duration
}

func (t *TimedOutError) Error() string {
	return fmt.Sprintf("%s: gave up after %s", t.Op, t.Limit)
}

func (t *TimedOutError) Is(e error) bool {
	_, ok := e.(*TimedOutError)
	return ok
}

func NewTimedOutError(op string, limit time.Duration) error {
	return &TimedOutError{Op: op, Limit: limit}
}

// TimedOut reports the limit of the first TimedOutError wrapped by err
func TimedOut(err error) (time.Duration, bool) {
	var t *TimedOutError
	if errors.As(err, &t) {
		return t.Limit, true
	}
	return 0, false
}
