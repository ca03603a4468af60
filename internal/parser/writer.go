package parser

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	perr "github.com/user/arccheck_drc_go/internal/platform/errors"
)

// Precision returns the decimals used for h: the header's Decimal Places
// when present, otherwise the codec precision.
func (c *Codec) Precision(h *Header) int {
	if h != nil {
		if d, ok := h.DecimalPlaces(); ok {
			return d
		}
	}
	return c.precision
}

// Serialize renders h and blocks as text. See Write.
func (c *Codec) Serialize(h *Header, blocks []Block) (string, error) {
	var sb strings.Builder
	if err := c.Write(&sb, h, blocks); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Write emits the header lines, a blank line, then each block as its
// section line, tab-joined fixed-precision rows and a blank line. Every line
// ends with the source's line ending (h.LineEnding), so a CRLF file stays
// CRLF. Trailing blank lines of the source header collapse into the single
// separator line. Blocks are validated against h before anything is written.
func (c *Codec) Write(w io.Writer, h *Header, blocks []Block) error {
	if err := validateBlocks(h, blocks); err != nil {
		return err
	}
	prec := c.Precision(h)
	eol := h.LineEnding()

	bw := bufio.NewWriter(w)
	if h.Text() != "" {
		bw.WriteString(strings.ReplaceAll(h.Text(), "\n", eol))
		bw.WriteString(eol)
	}
	bw.WriteString(eol)

	buf := make([]byte, 0, 32)
	for _, b := range blocks {
		bw.WriteString(b.SectionLine())
		bw.WriteString(eol)
		for r := 0; r < b.Data.Rows(); r++ {
			for col := 0; col < b.Data.Cols(); col++ {
				if col > 0 {
					bw.WriteByte('\t')
				}
				buf = strconv.AppendFloat(buf[:0], b.Data.At(r, col), 'f', prec, 64)
				bw.Write(buf)
			}
			bw.WriteString(eol)
		}
		bw.WriteString(eol)
	}
	if err := bw.Flush(); err != nil {
		return perr.IOf(err, "write diode array file")
	}
	return nil
}

func validateBlocks(h *Header, blocks []Block) error {
	if h == nil {
		return perr.Formatf(0, 0, "serialize requires a header")
	}
	frames := 0
	for i, b := range blocks {
		if !sectionTokens[b.Label] {
			return perr.Formatf(0, 0, "block %d: unknown section %q", i, b.Label)
		}
		if b.Data.Rows() == 0 {
			return perr.Formatf(0, 0, "block %d (%s) has no rows", i, b.SectionLine())
		}
		if b.Data.Cols() != h.DiodeCount() {
			return perr.Formatf(0, 0, "block %d (%s) has %d columns, header declares %d",
				i, b.SectionLine(), b.Data.Cols(), h.DiodeCount())
		}
		if b.Label == SectionFrame {
			if b.Data.Rows() != h.RowsPerFrame() {
				return perr.Formatf(0, 0, "block %d (%s) has %d rows, want %d",
					i, b.SectionLine(), b.Data.Rows(), h.RowsPerFrame())
			}
			frames++
		}
	}
	if frames != h.FrameCount() {
		return perr.Formatf(0, 0, "%d %s blocks, header declares %s %d",
			frames, SectionFrame, KeyFrameCount, h.FrameCount())
	}
	return nil
}
