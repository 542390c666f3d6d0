//go:build !linux

package reaper

// Subreap is a no-op on platforms without PR_SET_CHILD_SUBREAPER.
func Subreap() error { return nil }

// ReapChildren is a no-op on platforms without subreaper support.
func ReapChildren() error { return nil }
