package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hypernets/sequencer/internal/hypernets/geometry"
	"github.com/hypernets/sequencer/internal/hypernets/request"
)

// Legacy reference codes of the csv format
const (
	v1RefPointSun = 0
	v1RefSun      = 2
	v1RefDefault  = 4
	v1RefAbsolute = 8
)

func v1Reference(ref, pan, tilt string) int {
	switch ref {
	case "sun":
		if pan == "-1" && tilt == "-1" {
			return v1RefPointSun
		}
		return v1RefSun
	case "abs", "nor":
		return v1RefAbsolute
	default:
		return v1RefDefault
	}
}

// parseV1 reads pan,ref,tilt,mode,action,it,repeat,total lines.
// A first line whose pan column is not a number is a header.
func (p *Protocol) parseV1(lines []string) error {
	for i, raw := range lines {
		lineNo := i + 1
		if strings.TrimSpace(raw) == "" {
			continue
		}

		fields := strings.Split(raw, ",")
		for k := range fields {
			fields[k] = strings.TrimSpace(fields[k])
		}

		if i == 0 {
			if _, err := strconv.ParseFloat(fields[0], 64); err != nil {
				continue
			}
		}

		if len(fields) < 8 {
			return &ParseError{Line: lineNo, Err: fmt.Errorf("expected 8 columns, got %d", len(fields))}
		}

		pan, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return &ParseError{Line: lineNo, Err: fmt.Errorf("pan %q: %w", fields[0], err)}
		}
		tilt, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return &ParseError{Line: lineNo, Err: fmt.Errorf("tilt %q: %w", fields[2], err)}
		}

		ref := v1Reference(strings.ToLower(fields[1]), fields[0], fields[2])
		if ref == v1RefPointSun {
			pan, tilt = 0, 0
		}

		req, err := request.FromLine(fields[3:8])
		if err != nil {
			return &ParseError{Line: lineNo, Err: err}
		}

		p.Lines = append(p.Lines, Line{
			Geometry: geometry.FromCode(ref, pan, tilt),
			Requests: []*request.Request{req},
		})
	}

	return nil
}
