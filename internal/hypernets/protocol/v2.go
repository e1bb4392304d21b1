package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hypernets/sequencer/internal/hypernets/geometry"
	"github.com/hypernets/sequencer/internal/hypernets/request"
	"github.com/hypernets/sequencer/pkg/log"
	"go.uber.org/zap"
)

// splitChunks cuts a line on '+' outside of brackets and drops
// everything after a '#' outside of brackets.
func splitChunks(line string) ([]string, error) {
	var chunks []string
	var cur strings.Builder
	depth := 0

scan:
	for _, c := range line {
		switch {
		case c == '[':
			depth++
		case c == ']':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced ']'")
			}
		case depth == 0 && c == '#':
			break scan
		case depth == 0 && c == '+':
			chunks = append(chunks, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteRune(c)
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced '['")
	}
	chunks = append(chunks, cur.String())

	out := chunks[:0]
	for _, c := range chunks {
		if c != "" {
			out = append(out, c)
		}
	}
	return out, nil
}

func (p *Protocol) parseV2(lines []string, firstLineNo int) error {
	var current *Line

	for i, raw := range lines {
		lineNo := firstLineNo + i
		line := strings.TrimSpace(raw)

		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "##"):
			continue
		case strings.HasPrefix(line, "#"):
			log.Info("sequence comment", zap.String("text", strings.TrimSpace(line[1:])))
			continue
		}

		chunks, err := splitChunks(strings.ReplaceAll(line, " ", ""))
		if err != nil {
			return &ParseError{Line: lineNo, Err: err}
		}

		for _, chunk := range chunks {
			switch chunk[0] {
			case '~':
				name, cond, err := parseFlag(chunk)
				if err != nil {
					return &ParseError{Line: lineNo, Err: err}
				}
				if _, dup := p.Flags[name]; dup {
					log.Warn("flag redefined", zap.String("flag", name), zap.Int("line", lineNo))
				}
				p.Flags[name] = cond

			case '@':
				g, err := parseGeometry(chunk)
				if err != nil {
					return &ParseError{Line: lineNo, Err: err}
				}
				p.Lines = append(p.Lines, Line{Geometry: g})
				current = &p.Lines[len(p.Lines)-1]

			default:
				if current == nil {
					return &ParseError{Line: lineNo, Err: ErrRequestBeforeGeom}
				}
				req, err := parseRequest(chunk)
				if err != nil {
					return &ParseError{Line: lineNo, Err: err}
				}
				current.Requests = append(current.Requests, req)
			}
		}
	}

	return nil
}

func parseGeometry(chunk string) (*geometry.Geometry, error) {
	parts := strings.FieldsFunc(chunk, func(r rune) bool {
		return r == '[' || r == ']' || r == '@' || r == ','
	})
	if len(parts) < 4 {
		return nil, fmt.Errorf("geometry %q needs pan, pan reference, tilt, tilt reference", chunk)
	}

	pan, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return nil, fmt.Errorf("pan %q is not a number", parts[0])
	}
	tilt, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return nil, fmt.Errorf("tilt %q is not a number", parts[2])
	}

	return geometry.New(parts[1], pan, parts[3], tilt, parts[4:]...)
}

// parseRequest accepts the count first layout "N.tokens..." and the
// trailing layout "rad.ent.itv.itsw[.cap[.total]]", "picture[.cap]",
// "validation.rad.ent.itv.itsw[.current]".
func parseRequest(chunk string) (*request.Request, error) {
	tokens := strings.Split(chunk, ".")

	if n, err := strconv.Atoi(tokens[0]); err == nil {
		return request.FromParams(n, tokens[1:]...)
	}

	switch strings.ToLower(tokens[0]) {
	case "picture":
		numberCap := 1
		if len(tokens) > 1 {
			v, err := strconv.Atoi(tokens[1])
			if err != nil {
				return nil, fmt.Errorf("picture count %q is not an integer", tokens[1])
			}
			numberCap = v
		}
		return request.FromParams(numberCap, "picture")

	case "validation":
		return request.FromParams(1, tokens...)
	}

	if len(tokens) < 4 || len(tokens) > 6 {
		return nil, fmt.Errorf("%w: %q", request.ErrTokenCount, chunk)
	}

	numberCap, total := 1, 0
	var err error
	if len(tokens) > 4 {
		if numberCap, err = strconv.Atoi(tokens[4]); err != nil {
			return nil, fmt.Errorf("repetitions %q is not an integer", tokens[4])
		}
	}
	if len(tokens) > 5 {
		if total, err = strconv.Atoi(tokens[5]); err != nil {
			return nil, fmt.Errorf("total time %q is not an integer", tokens[5])
		}
	}

	r, err := request.FromParams(numberCap, tokens[:4]...)
	if err != nil {
		return nil, err
	}
	r.TotalMeasurementTime = total
	return r, nil
}
