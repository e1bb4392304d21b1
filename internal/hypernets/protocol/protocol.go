package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hypernets/sequencer/internal/hypernets/geometry"
	"github.com/hypernets/sequencer/internal/hypernets/request"
	"github.com/hypernets/sequencer/pkg/file"
	"github.com/hypernets/sequencer/pkg/log"
	"go.uber.org/zap"
)

// HeaderPrefix marks the first line of a v2 sequence file
const HeaderPrefix = "HypernetsProtocol"

const VersionLegacy = "1"

// Line is one geometry with the requests executed there, in file order
type Line struct {
	Geometry *geometry.Geometry
	Requests []*request.Request
}

// Protocol is a fully parsed sequence file, it is not modified after parsing
type Protocol struct {
	Name    string
	Version string
	Lines   []Line
	Flags   map[string]Condition
}

func newProtocol(name string) *Protocol {
	return &Protocol{Name: name, Flags: make(map[string]Condition)}
}

// ParseFile parses the sequence file at path
func ParseFile(path string) (*Protocol, error) {
	if err := file.Exists(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, file.ErrPathIsDir) {
			return nil, fmt.Errorf("%w: %s", ErrSequenceMissing, path)
		}
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p, err := Parse(filepath.Base(path), f)
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			perr.File = path
		}
		return nil, err
	}
	return p, nil
}

// Parse reads a sequence, the syntax is chosen from the first line
func Parse(name string, r io.Reader) (*Protocol, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	p := newProtocol(name)
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[0]), HeaderPrefix) {
		p.Version = parseVersion(lines[0])
		if err := p.parseV2(lines[1:], 2); err != nil {
			return nil, err
		}
	} else {
		p.Version = VersionLegacy
		if err := p.parseV1(lines); err != nil {
			return nil, err
		}
	}

	log.Debug("sequence parsed",
		zap.String("name", name),
		zap.String("version", p.Version),
		zap.Int("geometries", len(p.Lines)),
		zap.Int("flags", len(p.Flags)),
	)
	return p, nil
}

func parseVersion(header string) string {
	v := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(header), HeaderPrefix))
	return strings.TrimLeft(v, "_-vV ")
}

func (p *Protocol) anyRequest(match func(*request.Request) bool) bool {
	for _, l := range p.Lines {
		for _, r := range l.Requests {
			if match(r) {
				return true
			}
		}
	}
	return false
}

// SWIRRequested reports whether a request captures the SWIR channel
func (p *Protocol) SWIRRequested() bool {
	return p.anyRequest(func(r *request.Request) bool {
		return r.Action == request.ActionMeasurement && r.Radiometer.HasSWIR()
	})
}

// InstrumentRequested reports whether any request needs the radiometer
func (p *Protocol) InstrumentRequested() bool {
	return p.anyRequest(func(r *request.Request) bool {
		return r.Action != request.ActionNone
	})
}

// ValidationRequested reports whether the validation module is used
func (p *Protocol) ValidationRequested() bool {
	return p.anyRequest(func(r *request.Request) bool {
		return r.Action == request.ActionValidation
	})
}

// RequestCount is the number of requests across all lines
func (p *Protocol) RequestCount() int {
	n := 0
	for _, l := range p.Lines {
		n += len(l.Requests)
	}
	return n
}

func (p *Protocol) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (v%s)\n", p.Name, p.Version)
	for name, c := range p.Flags {
		fmt.Fprintf(&b, "  flag %s: %s\n", name, c)
	}
	for i, l := range p.Lines {
		fmt.Fprintf(&b, "  %d) %s\n", i+1, l.Geometry)
		for _, r := range l.Requests {
			fmt.Fprintf(&b, "       %s\n", r)
		}
	}
	return b.String()
}
