package sequence

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hypernets/sequencer/internal/hypernets/request"
	"github.com/hypernets/sequencer/pkg/log"
	"go.uber.org/zap"
)

// MetadataHeader is the [Metadata] section opening metadata.txt
type MetadataHeader struct {
	// Site fields copied from the [metadata] config section
	User map[string]string

	ToolsVersion    string
	RunID           uuid.UUID
	DateTime        time.Time
	HypstarSN       int
	LEDSN           int
	ProtocolFile    string
	ProtocolVersion string

	Latitude      *float64
	Longitude     *float64
	OffsetPan     *float64
	OffsetTilt    *float64
	AzimuthSwitch *float64
}

func formatOptional(v *float64) (string, bool) {
	if v == nil {
		return "", false
	}
	return strconv.FormatFloat(*v, 'f', -1, 64), true
}

// WriteTo writes the header, user fields sorted by key. Unset site values
// are left out with a warning.
func (h *MetadataHeader) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	cw := &countingWriter{w: bw}

	fmt.Fprintln(cw, "[Metadata]")

	keys := make([]string, 0, len(h.User))
	for k := range h.User {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(cw, "%s = %s\n", k, h.User[k])
	}

	fmt.Fprintf(cw, "hypernets_tools_version = %s\n", h.ToolsVersion)
	fmt.Fprintf(cw, "run_id = %s\n", h.RunID)
	fmt.Fprintf(cw, "datetime = %s\n", h.DateTime.UTC().Format(request.TimestampLayout))
	fmt.Fprintf(cw, "hypstar_sn = %d\n", h.HypstarSN)
	fmt.Fprintf(cw, "led_sn = %d\n", h.LEDSN)
	fmt.Fprintf(cw, "protocol_file_name = %s\n", h.ProtocolFile)
	fmt.Fprintf(cw, "protocol_version = %s\n", h.ProtocolVersion)

	optional := []struct {
		key   string
		value *float64
	}{
		{"latitude", h.Latitude},
		{"longitude", h.Longitude},
		{"offset_pan", h.OffsetPan},
		{"offset_tilt", h.OffsetTilt},
		{"azimuth_switch", h.AzimuthSwitch},
	}
	for _, o := range optional {
		s, ok := formatOptional(o.value)
		if !ok {
			log.Warn("metadata field not configured", zap.String("field", o.key))
			continue
		}
		fmt.Fprintf(cw, "%s = %s\n", o.key, s)
	}

	if cw.err != nil {
		return cw.n, cw.err
	}
	return cw.n, bw.Flush()
}

type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err := c.w.Write(p)
	c.n += int64(n)
	c.err = err
	return n, err
}

// Block is the metadata of one executed request
type Block struct {
	Position string
	Filename string
	Time     time.Time

	AskPan, AskTilt float64
	AbsPan, AbsTilt float64
	RefPan, RefTilt float64
}

func (b *Block) WriteTo(w io.Writer) (int64, error) {
	n, err := fmt.Fprintf(w, "\n[%s]\n%s=%s\npt_ask=%.2f; %.2f\npt_abs=%.2f;%.2f\npt_ref=%.2f; %.2f\n",
		b.Position, b.Filename, b.Time.UTC().Format(request.TimestampLayout),
		b.AskPan, b.AskTilt, b.AbsPan, b.AbsTilt, b.RefPan, b.RefTilt)
	return int64(n), err
}

// metadataFile keeps metadata.txt open for the run, every record is
// synced so an aborted run keeps everything written so far.
type metadataFile struct {
	f *os.File
}

func createMetadataFile(path string, h *MetadataHeader) (*metadataFile, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	if _, err := h.WriteTo(f); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &metadataFile{f: f}, nil
}

func (m *metadataFile) write(b *Block) error {
	if _, err := b.WriteTo(m.f); err != nil {
		return err
	}
	return m.f.Sync()
}

func (m *metadataFile) Close() error {
	return m.f.Close()
}
