// Package log provides leveled, instance-tagged logging for zipstream.
package log

import (
	"fmt"
	"reflect"

	alog "github.com/anacrolix/log"
)

// Logger writes leveled messages through an anacrolix/log logger, optionally
// prefixed with a tag identifying the instance that produced them.
//
// The zero Logger discards all messages.
type Logger struct {
	base   *alog.Logger
	prefix string
}

// New returns a Logger writing to the default anacrolix/log handler. When
// verbose is set, informational messages are written; otherwise only warnings
// and errors are.
func New(verbose bool) Logger {
	minLevel := alog.Warning
	if verbose {
		minLevel = alog.Info
	}
	base := alog.Default.WithNames("zipstream").FilterLevel(minLevel)
	return Logger{base: &base}
}

// T returns a copy of l whose messages are prefixed in the form
// "Type(0xabcd...)", naming the element type and address of the src pointer.
// This can be a convenient way to differentiate instances of the same type,
// though addresses are somewhat opaque as identifiers.
func T[V any](l Logger, src *V) Logger {
	l.prefix = fmt.Sprintf("%s(%p): ", reflect.TypeFor[V]().Name(), src)
	return l
}

func (l Logger) Infof(format string, v ...any) {
	l.levelf(alog.Info, format, v...)
}

func (l Logger) Warnf(format string, v ...any) {
	l.levelf(alog.Warning, format, v...)
}

func (l Logger) Errorf(format string, v ...any) {
	l.levelf(alog.Error, format, v...)
}

func (l Logger) levelf(level alog.Level, format string, v ...any) {
	if l.base == nil {
		return
	}
	l.base.Levelf(level, l.prefix+format, v...)
}
