package testkit

import (
	"math"
	"os"
	"testing"
)

func TestMustPanicAndContain(t *testing.T) {
	MustPanic(t, func() { panic("boom") })
	MustContain(t, "hello world", "world")
}

func TestWriteFile(t *testing.T) {
	p := WriteFile(t, "a.txt", "content")
	b, err := os.ReadFile(p)
	if err != nil || string(b) != "content" {
		t.Fatalf("ReadFile = %q, %v", b, err)
	}
}

func TestAlmostEqual(t *testing.T) {
	if !AlmostEqual(1.0, 1.0+1e-12, 1e-9) {
		t.Fatalf("expected near values equal")
	}
	if AlmostEqual(1.0, 1.1, 1e-9) {
		t.Fatalf("expected distinct values unequal")
	}
	if !AlmostEqual(math.NaN(), math.NaN(), 0) || AlmostEqual(math.NaN(), 0, 1) {
		t.Fatalf("NaN handling mismatch")
	}
	MustRowsEqual(t, [][]float64{{1, 2}}, [][]float64{{1, 2}}, 0)
}
