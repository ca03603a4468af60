// Package parser reads and writes the SNC-style diode array text format: a
// key/value header followed by Frame, Background and Calibration blocks of
// tab or whitespace separated numeric rows.
package parser

import (
	"bufio"
	"os"
	"strings"

	"github.com/user/arccheck_drc_go/internal/geometry"
	perr "github.com/user/arccheck_drc_go/internal/platform/errors"
	"github.com/user/arccheck_drc_go/internal/platform/logger"
)

// maxLineBytes bounds a single row; 1387 columns at full precision fit easily.
const maxLineBytes = 4 << 20

// Codec parses and serializes files, optionally bound to a detector model.
// A Codec holds no per-file state and is safe for concurrent use.
type Codec struct {
	model     *geometry.Model
	precision int
}

// Option configures a Codec.
type Option func(*Codec)

// WithModel rejects headers whose Diode Count differs from the model.
func WithModel(m *geometry.Model) Option {
	return func(c *Codec) { c.model = m }
}

// WithPrecision sets the decimals written when the header has no
// Decimal Places key. Negative values are ignored.
func WithPrecision(p int) Option {
	return func(c *Codec) {
		if p >= 0 {
			c.precision = p
		}
	}
}

// NewCodec builds a Codec.
func NewCodec(opts ...Option) *Codec {
	c := &Codec{precision: DefaultPrecision}
	for _, o := range opts {
		o(c)
	}
	return c
}

var defaultCodec = NewCodec()

// ParseHeader parses a header with the default codec.
func ParseHeader(raw string) (*Header, error) { return defaultCodec.ParseHeader(raw) }

// ReadAll parses a whole file with the default codec.
func ReadAll(raw string) (*Header, []Block, error) { return defaultCodec.ReadAll(raw) }

// Serialize writes a file with the default codec.
func Serialize(h *Header, blocks []Block) (string, error) { return defaultCodec.Serialize(h, blocks) }

// ReadAll parses the header and every block. Nothing is returned unless the
// whole file is valid.
func (c *Codec) ReadAll(raw string) (*Header, []Block, error) {
	h, err := c.ParseHeader(raw)
	if err != nil {
		return nil, nil, err
	}
	var blocks []Block
	for b, err := range c.Frames(raw, h) {
		if err != nil {
			return nil, nil, err
		}
		blocks = append(blocks, b)
	}
	logger.Named("parser").Debug().
		Int("diodes", h.DiodeCount()).
		Int("frames", h.FrameCount()).
		Int("blocks", len(blocks)).
		Msg("parsed diode array file")
	return h, blocks, nil
}

// ReadFile reads path and parses it with ReadAll.
func (c *Codec) ReadFile(path string) (*Header, []Block, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, perr.IOf(err, "read %s", path)
	}
	h, blocks, err := c.ReadAll(string(data))
	if err != nil {
		return nil, nil, perr.WithOp(err, path)
	}
	return h, blocks, nil
}

func newScanner(raw string) *bufio.Scanner {
	sc := bufio.NewScanner(strings.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return sc
}

// sectionOf reports whether line opens a block. A section line is a known
// token alone or followed by a numeric suffix such as a frame number, so
// header keys ("Frame Count:") and free text ("Frame rate was low") never
// end the header.
func sectionOf(line string) (label, suffix string, ok bool) {
	t := strings.TrimSpace(line)
	label, suffix, _ = strings.Cut(t, " ")
	if !sectionTokens[label] {
		return "", "", false
	}
	suffix = strings.TrimSpace(suffix)
	if suffix != "" {
		if _, err := strconv.ParseUint(suffix, 10, 64); err != nil {
			return "", "", false
		}
	}
	return label, suffix, true
}
