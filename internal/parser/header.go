package parser

import (
	"math"
	"strconv"
	"strings"

	perr "github.com/user/arccheck_drc_go/internal/platform/errors"
)

// ParseHeader scans raw up to the first section line. Each line is split on
// its first ':' or tab; blank and '#' comment lines are skipped and lines
// without a delimiter are kept verbatim but not interpreted. A repeated key
// keeps its first position and its last value.
func (c *Codec) ParseHeader(raw string) (*Header, error) {
	h := &Header{
		values: make(map[string]string),
		lines:  make(map[string]int),
	}

	var text []string
	sc := newScanner(raw)
	line := 0
	for sc.Scan() {
		line++
		if line == 1 && strings.HasSuffix(sc.Text(), "\r") {
			h.eol = "\r\n"
		}
		l := strings.TrimRight(sc.Text(), "\r")
		if _, _, ok := sectionOf(l); ok {
			break
		}
		text = append(text, l)

		t := strings.TrimSpace(l)
		if t == "" || strings.HasPrefix(t, "#") {
			continue
		}
		i := strings.IndexAny(t, ":\t")
		if i < 0 {
			continue
		}
		key := strings.TrimSpace(t[:i])
		if key == "" {
			continue
		}
		if _, seen := h.values[key]; !seen {
			h.keys = append(h.keys, key)
		}
		h.values[key] = strings.TrimSpace(t[i+1:])
		h.lines[key] = line
	}
	if err := sc.Err(); err != nil {
		return nil, perr.Formatf(line+1, 0, "read header: %v", err)
	}

	// Trailing blank lines belong to the separator, not the header.
	for len(text) > 0 && strings.TrimSpace(text[len(text)-1]) == "" {
		text = text[:len(text)-1]
	}
	h.text = strings.Join(text, "\n")

	if err := c.interpret(h, line); err != nil {
		return nil, err
	}
	return h, nil
}

// interpret fills the typed fields from the raw key/value map.
func (c *Codec) interpret(h *Header, lastLine int) error {
	var err error
	if h.diodeCount, err = h.requiredInt(KeyDiodeCount, 1, lastLine); err != nil {
		return err
	}
	if h.frameCount, err = h.requiredInt(KeyFrameCount, 0, lastLine); err != nil {
		return err
	}

	h.rowsPerFrame = 1
	if _, ok := h.values[KeyRowsPerFrame]; ok {
		if h.rowsPerFrame, err = h.requiredInt(KeyRowsPerFrame, 1, lastLine); err != nil {
			return err
		}
	}
	if h.dosePerCount, h.hasDosePerCount, err = h.optionalPositive(KeyDosePerCount); err != nil {
		return err
	}
	if h.frameInterval, h.hasInterval, err = h.optionalPositive(KeyFrameInterval); err != nil {
		return err
	}
	if v, ok := h.values[KeyDecimalPlaces]; ok {
		n, convErr := strconv.Atoi(v)
		if convErr != nil || n < 0 || n > 17 {
			return perr.Formatf(h.lines[KeyDecimalPlaces], 0, "%s: %q is not an integer in 0..17", KeyDecimalPlaces, v)
		}
		h.decimals, h.hasDecimals = n, true
	}

	if c.model != nil && h.diodeCount != c.model.DiodeCount() {
		return perr.Formatf(h.lines[KeyDiodeCount], 0, "%s %d does not match detector model %s (%d diodes)",
			KeyDiodeCount, h.diodeCount, c.model.Name(), c.model.DiodeCount())
	}
	return nil
}

func (h *Header) requiredInt(key string, min, lastLine int) (int, error) {
	v, ok := h.values[key]
	if !ok {
		return 0, perr.Formatf(lastLine, 0, "required header key %q is missing", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min {
		return 0, perr.Formatf(h.lines[key], 0, "%s: %q is not an integer >= %d", key, v, min)
	}
	return n, nil
}

func (h *Header) optionalPositive(key string) (float64, bool, error) {
	v, ok := h.values[key]
	if !ok {
		return 0, false, nil
	}
	// A trailing unit such as "50 ms" is ignored.
	num, _, _ := strings.Cut(v, " ")
	f, err := strconv.ParseFloat(num, 64)
	if err != nil || !(f > 0) || math.IsInf(f, 0) {
		return 0, false, perr.Formatf(h.lines[key], 0, "%s: %q is not a positive number", key, v)
	}
	return f, true, nil
}
