package util

import (
	"fmt"
)

// Panicf allows passing formated string to panic()
func Panicf(format string, args ...interface{}) {
	s := fmt.Sprintf(format, args...)
	panic(s)
}

// Assert panics through Panicf when cond is false. It guards internal
// invariants only; malformed peer input must never reach it.
func Assert(cond bool, format string, args ...interface{}) {
	if !cond {
		Panicf("assertion failed: "+format, args...)
	}
}
