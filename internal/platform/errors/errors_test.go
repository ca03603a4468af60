package errors

import (
	stderrs "errors"
	"testing"
)

func TestExitCodeMapping(t *testing.T) {
	cases := []struct {
		code ErrorCode
		want int
	}{
		{ErrorCodeFormat, 3},
		{ErrorCodeUnknownDiode, 4},
		{ErrorCodeCorrection, 5},
		{ErrorCodeConfig, 2},
		{ErrorCodeIO, 6},
		{ErrorCodeUnknown, 1},
		{999, 1}, // default branch
	}
	for _, c := range cases {
		if got := ExitCode(c.code); got != c.want {
			t.Fatalf("ExitCode(%v) = %d, want %d", c.code, got, c.want)
		}
	}
	if ExitStatus(nil) != 0 {
		t.Fatalf("ExitStatus(nil) should be 0")
	}
}

func TestErrorCodeString(t *testing.T) {
	if ErrorCodeUnknownDiode.String() != "unknown_diode" {
		t.Fatalf("String() = %q", ErrorCodeUnknownDiode.String())
	}
	if ErrorCode(42).String() != "unknown" {
		t.Fatalf("out of range code should render unknown")
	}
}

func TestErrorTypeAndMethods(t *testing.T) {
	var e *Error
	if e.Error() != "<nil>" {
		t.Fatalf("nil *Error render = %q, want <nil>", e.Error())
	}

	f := Formatf(12, 3, "value %q is not numeric", "x")
	if got, want := f.Error(), `line 12, field 3: value "x" is not numeric`; got != want {
		t.Fatalf("Formatf().Error = %q, want %q", got, want)
	}
	fe, ok := As(f)
	if !ok || fe.Line() != 12 || fe.Field() != 3 || fe.Code() != ErrorCodeFormat {
		t.Fatalf("As(Formatf) = %+v", fe)
	}
	if fe.Message() != `value "x" is not numeric` {
		t.Fatalf("Message() = %q", fe.Message())
	}

	lineOnly := Formatf(4, 0, "missing key")
	if got := lineOnly.Error(); got != "line 4: missing key" {
		t.Fatalf("line-only render = %q", got)
	}

	src := stderrs.New("root")
	w := Wrapf(src, ErrorCodeIO, "read %s", "a.txt")
	if got := w.Error(); got != "read a.txt: root" {
		t.Fatalf("Wrapf().Error = %q", got)
	}
	if !stderrs.Is(w, src) {
		t.Fatalf("errors.Is should see wrapped cause")
	}
	if Root(w) != src {
		t.Fatalf("Root() did not return deepest cause")
	}
	if CodeOf(src) != ErrorCodeUnknown {
		t.Fatalf("foreign error should be unknown")
	}
	if IsCode(nil, ErrorCodeUnknown) {
		t.Fatalf("IsCode(nil) must be false")
	}
}

func TestMutatorsCopyOnWrite(t *testing.T) {
	base := Correctionf("factor %g", -1.0)
	withOp := WithOp(base, "pulse_rate")
	withLine := WithLine(withOp, 7)
	withField := WithField(withLine, 2)

	if got := withField.Error(); got != "pulse_rate: line 7, field 2: factor -1" {
		t.Fatalf("mutated render = %q", got)
	}
	if b, _ := As(base); b.Op() != "" || b.Line() != 0 || b.Field() != 0 {
		t.Fatalf("copy-on-write mutated original")
	}

	foreign := stderrs.New("x")
	if WithOp(foreign, "op") != foreign || WithLine(foreign, 1) != foreign || WithField(foreign, 1) != foreign {
		t.Fatalf("mutators must return foreign errors unchanged")
	}
}

func TestSugarCodes(t *testing.T) {
	if !IsCode(UnknownDiodef("x"), ErrorCodeUnknownDiode) ||
		!IsCode(Correctionf("x"), ErrorCodeCorrection) ||
		!IsCode(Configf("x"), ErrorCodeConfig) ||
		!IsCode(IOf(stderrs.New("x"), "y"), ErrorCodeIO) ||
		!IsCode(Formatf(0, 0, "x"), ErrorCodeFormat) {
		t.Fatalf("sugar helpers code mismatch")
	}
	if WrapIf(nil, ErrorCodeIO, "ignored") != nil {
		t.Fatalf("WrapIf(nil) should be nil")
	}
	if !IsCode(WrapIf(stderrs.New("x"), ErrorCodeIO, "m"), ErrorCodeIO) {
		t.Fatalf("WrapIf(err) should wrap")
	}
	if !IsCode(New(ErrorCodeConfig, "m"), ErrorCodeConfig) || !IsCode(Wrap(stderrs.New("x"), ErrorCodeFormat, "m"), ErrorCodeFormat) {
		t.Fatalf("constructors code mismatch")
	}
}
