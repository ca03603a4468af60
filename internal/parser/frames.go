package parser

import (
	"iter"
	"math"
	"strconv"
	"strings"

	perr "github.com/user/arccheck_drc_go/internal/platform/errors"
)

// pendingBlock collects rows until the next section line.
type pendingBlock struct {
	label  string
	suffix string
	line   int
	rows   [][]float64
}

// Frames returns a single-pass sequence over the blocks of raw, in file
// order. Rows must have h.DiodeCount() fields and Frame blocks exactly
// h.RowsPerFrame() rows; the number of Frame blocks is checked against
// h.FrameCount() after the last block. On the first error the sequence
// yields (Block{}, err) and stops.
func (c *Codec) Frames(raw string, h *Header) iter.Seq2[Block, error] {
	return func(yield func(Block, error) bool) {
		if h == nil {
			yield(Block{}, perr.Formatf(0, 0, "frames requested without a parsed header"))
			return
		}

		sc := newScanner(raw)
		var (
			cur    *pendingBlock
			frames int
			line   int
		)

		// emit closes the pending block; false means stop iterating.
		emit := func() bool {
			if cur == nil {
				return true
			}
			b, err := finishBlock(cur, h)
			cur = nil
			if err != nil {
				yield(Block{}, err)
				return false
			}
			if b.Label == SectionFrame {
				frames++
			}
			return yield(b, nil)
		}

		for sc.Scan() {
			line++
			text := strings.TrimRight(sc.Text(), "\r")

			if label, suffix, ok := sectionOf(text); ok {
				if !emit() {
					return
				}
				cur = &pendingBlock{label: label, suffix: suffix, line: line}
				continue
			}
			// Header region: everything before the first section line.
			if cur == nil {
				continue
			}

			t := strings.TrimSpace(text)
			if t == "" || strings.HasPrefix(t, "#") {
				continue
			}
			if cur.label == SectionFrame && len(cur.rows) == h.RowsPerFrame() {
				yield(Block{}, perr.Formatf(line, 0, "%s block at line %d has more than %d rows",
					SectionFrame, cur.line, h.RowsPerFrame()))
				return
			}
			row, err := parseRow(t, line, h.DiodeCount())
			if err != nil {
				yield(Block{}, err)
				return
			}
			cur.rows = append(cur.rows, row)
		}
		if err := sc.Err(); err != nil {
			yield(Block{}, perr.Formatf(line+1, 0, "read frames: %v", err))
			return
		}
		if !emit() {
			return
		}
		if frames != h.FrameCount() {
			yield(Block{}, perr.Formatf(line, 0, "found %d %s blocks, header declares %s %d",
				frames, SectionFrame, KeyFrameCount, h.FrameCount()))
		}
	}
}

func finishBlock(p *pendingBlock, h *Header) (Block, error) {
	if len(p.rows) == 0 {
		return Block{}, perr.Formatf(p.line, 0, "%s block has no rows", p.label)
	}
	if p.label == SectionFrame && len(p.rows) != h.RowsPerFrame() {
		return Block{}, perr.Formatf(p.line, 0, "%s block has %d rows, want %d",
			SectionFrame, len(p.rows), h.RowsPerFrame())
	}
	data, err := NewDiodeArray(p.rows)
	if err != nil {
		return Block{}, perr.WithLine(err, p.line)
	}
	return Block{Label: p.label, Suffix: p.suffix, Line: p.line, Data: data}, nil
}

// parseRow splits a data line on whitespace. Fields are 1-based in errors.
// Zeros are literal values, never missing-data markers.
func parseRow(t string, line, want int) ([]float64, error) {
	fields := strings.Fields(t)
	if len(fields) != want {
		return nil, perr.Formatf(line, 0, "row has %d fields, want %d", len(fields), want)
	}
	row := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, perr.Formatf(line, i+1, "value %q is not a finite number", f)
		}
		row[i] = v
	}
	return row, nil
}
