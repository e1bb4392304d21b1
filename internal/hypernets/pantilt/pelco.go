package pantilt

import (
	"errors"
	"fmt"
	"math"
)

// Pelco-D framing: sync, address, cmd1, cmd2, data1, data2, checksum
const (
	frameLen  = 7
	syncByte  = 0xFF
	fullTurn  = 36000
	noisyByte = 0xFF

	cmdSetPan    = 0x4B
	cmdSetTilt   = 0x4D
	cmdQueryPan  = 0x51
	cmdQueryTilt = 0x53
	cmdReplyPan  = 0x59
	cmdReplyTilt = 0x5B
)

var (
	ErrBadFrame    = errors.New("bad pan-tilt frame")
	ErrBadChecksum = errors.New("bad pan-tilt checksum")
)

func checksum(frame []byte) byte {
	var sum byte
	for _, b := range frame[1:6] {
		sum += b
	}
	return sum
}

func newFrame(addr, cmd byte, value uint16) []byte {
	f := []byte{syncByte, addr, 0x00, cmd, byte(value >> 8), byte(value), 0}
	f[6] = checksum(f)
	return f
}

// encodeAngle converts degrees to the centidegree payload of a set
// command. The positioner firmware drops requests containing 0xFF after
// the sync byte, such values are moved by 0.01 degree.
func encodeAngle(deg float64, addr, cmd byte) uint16 {
	v := int(math.Round(deg*100)) % fullTurn
	if v < 0 {
		v += fullTurn
	}

	for i := 0; i < 4; i++ {
		f := newFrame(addr, cmd, uint16(v))
		if f[5] != noisyByte && f[6] != noisyByte {
			break
		}
		v = (v + 1) % fullTurn
	}
	return uint16(v)
}

func decodeReply(frame []byte, addr, want byte) (int, error) {
	if len(frame) != frameLen {
		return 0, fmt.Errorf("%w: length %d", ErrBadFrame, len(frame))
	}
	if frame[0] != syncByte || frame[1] != addr {
		return 0, fmt.Errorf("%w: header % x", ErrBadFrame, frame[:2])
	}
	if checksum(frame) != frame[6] {
		return 0, fmt.Errorf("%w: % x", ErrBadChecksum, frame)
	}
	if frame[3] != want {
		return 0, fmt.Errorf("%w: reply 0x%02x, want 0x%02x", ErrBadFrame, frame[3], want)
	}
	return int(frame[4])<<8 | int(frame[5]), nil
}
