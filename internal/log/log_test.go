package log

import (
	"fmt"
	"testing"
)

type tagged struct{ _ int }

func TestTPrefix(t *testing.T) {
	src := &tagged{}
	l := T(New(false), src)

	want := fmt.Sprintf("tagged(%p): ", src)
	if l.prefix != want {
		t.Errorf("wrong prefix: got %q, want %q", l.prefix, want)
	}
	if l.base == nil {
		t.Error("T dropped the base logger")
	}
}

func TestZeroLoggerDiscards(t *testing.T) {
	// Must not panic.
	var l Logger
	l.Infof("info %d", 1)
	l.Warnf("warn %d", 2)
	T(l, &tagged{}).Errorf("error %d", 3)
}
