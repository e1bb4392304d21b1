package pantilt

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hypernets/sequencer/pkg/log"
	"github.com/hypernets/sequencer/pkg/misc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHead answers Pelco-D queries and moves a fixed step per query
type fakeHead struct {
	mu      sync.Mutex
	pan     int
	tilt    int
	target  [2]int
	step    int
	silent  bool
	pending []byte
	written [][]byte
}

func (h *fakeHead) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	f := append([]byte(nil), p...)
	h.written = append(h.written, f)

	value := int(f[4])<<8 | int(f[5])
	switch f[3] {
	case cmdSetPan:
		h.target[0] = value
	case cmdSetTilt:
		h.target[1] = value
	case cmdQueryPan:
		h.pan = approach(h.pan, h.target[0], h.step)
		h.reply(cmdReplyPan, h.pan)
	case cmdQueryTilt:
		h.tilt = approach(h.tilt, h.target[1], h.step)
		h.reply(cmdReplyTilt, h.tilt)
	}
	return len(p), nil
}

func (h *fakeHead) reply(cmd byte, value int) {
	if h.silent {
		return
	}
	h.pending = append(h.pending, newFrame(DefaultAddress, cmd, uint16(value))...)
}

func (h *fakeHead) Read(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := copy(p, h.pending)
	h.pending = h.pending[n:]
	return n, nil
}

func (h *fakeHead) ResetInputBuffer() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending = nil
	return nil
}

func (h *fakeHead) Close() error { return nil }

func (h *fakeHead) sets(cmd byte) []int {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []int
	for _, f := range h.written {
		if f[3] == cmd {
			out = append(out, int(f[4])<<8|int(f[5]))
		}
	}
	return out
}

func approach(cur, target, step int) int {
	switch {
	case cur+step < target:
		return cur + step
	case cur-step > target:
		return cur - step
	default:
		return target
	}
}

func testOptions() Options {
	return Options{MoveTimeout: 500 * time.Millisecond, PollInterval: 4 * time.Millisecond}
}

func TestFrameChecksum(t *testing.T) {
	f := newFrame(0x01, cmdSetPan, 9000)
	assert.Equal(t, []byte{0xFF, 0x01, 0x00, 0x4B, 0x23, 0x28, 0x97}, f)

	v, err := decodeReply(newFrame(0x01, cmdReplyTilt, 18000), 0x01, cmdReplyTilt)
	require.NoError(t, err)
	assert.Equal(t, 18000, v)

	bad := newFrame(0x01, cmdReplyTilt, 18000)
	bad[6]++
	_, err = decodeReply(bad, 0x01, cmdReplyTilt)
	assert.ErrorIs(t, err, ErrBadChecksum)

	_, err = decodeReply(bad[:5], 0x01, cmdReplyTilt)
	assert.ErrorIs(t, err, ErrBadFrame)
}

func TestEncodeAngleWorkarounds(t *testing.T) {
	// 2.55 degrees has a 0xFF low byte
	assert.Equal(t, uint16(256), encodeAngle(2.55, 0x01, cmdSetPan))

	// negative and oversized angles wrap
	assert.Equal(t, uint16(35000), encodeAngle(-10, 0x01, cmdSetTilt))
	assert.Equal(t, uint16(1000), encodeAngle(370, 0x01, cmdSetTilt))

	// no request ever carries 0xFF after the sync byte
	for deg := 0.0; deg < 360; deg += 0.01 {
		for _, cmd := range []byte{cmdSetPan, cmdSetTilt} {
			f := newFrame(0x01, cmd, encodeAngle(deg, 0x01, cmd))
			assert.NotContains(t, f[1:], byte(0xFF))
		}
	}
}

func TestMoveToWaitsForSettling(t *testing.T) {
	log.Init(true)

	head := &fakeHead{step: 500}
	d := newDriver(head, testOptions())

	res, err := d.MoveTo(context.Background(), misc.Ptr(90.0), misc.Ptr(180.0), true)
	require.NoError(t, err)
	assert.True(t, res.Known)
	assert.Equal(t, 9000, res.Pan)
	assert.Equal(t, 18000, res.Tilt)

	pan, tilt := res.Degrees()
	assert.Equal(t, 90.0, pan)
	assert.Equal(t, 180.0, tilt)

	assert.Equal(t, []int{9000}, head.sets(cmdSetPan))
	assert.Equal(t, []int{18000}, head.sets(cmdSetTilt))
}

func TestMoveToSingleAxis(t *testing.T) {
	log.Init(true)

	head := &fakeHead{step: 36000}
	d := newDriver(head, testOptions())

	_, err := d.MoveTo(context.Background(), nil, misc.Ptr(45.0), false)
	require.NoError(t, err)
	assert.Empty(t, head.sets(cmdSetPan))
	assert.Equal(t, []int{4500}, head.sets(cmdSetTilt))

	_, err = d.MoveTo(context.Background(), nil, nil, true)
	assert.ErrorIs(t, err, ErrNoRequest)
}

func TestMoveToUnknownPosition(t *testing.T) {
	log.Init(true)

	head := &fakeHead{step: 36000, silent: true}
	opts := testOptions()
	opts.MoveTimeout = 20 * time.Millisecond
	d := newDriver(head, opts)

	res, err := d.MoveTo(context.Background(), misc.Ptr(10.0), misc.Ptr(10.0), true)
	require.NoError(t, err)
	assert.False(t, res.Known)
	assert.Equal(t, "unknown", res.String())
}

func TestMoveToNoGoZone(t *testing.T) {
	log.Init(true)

	head := &fakeHead{step: 36000}
	opts := testOptions()
	opts.NoGo = &NoGoZone{TiltMin: 200, TiltMax: 250}
	d := newDriver(head, opts)

	_, err := d.MoveTo(context.Background(), misc.Ptr(0.0), misc.Ptr(225.0), true)
	assert.ErrorIs(t, err, ErrNoGoZone)
	assert.Empty(t, head.sets(cmdSetPan))
}

func TestMoveToCancelled(t *testing.T) {
	log.Init(true)

	head := &fakeHead{step: 1}
	opts := testOptions()
	opts.MoveTimeout = time.Minute
	opts.PollInterval = 50 * time.Millisecond
	d := newDriver(head, opts)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := d.MoveTo(ctx, misc.Ptr(180.0), misc.Ptr(180.0), true)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNoGoZoneWrap(t *testing.T) {
	z := &NoGoZone{TiltMin: 350, TiltMax: 10}
	assert.True(t, z.Contains(355))
	assert.True(t, z.Contains(5))
	assert.True(t, z.Contains(-5))
	assert.False(t, z.Contains(180))

	var none *NoGoZone
	assert.False(t, none.Contains(0))
}
