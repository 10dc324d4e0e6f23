//go:build !windows

package util

// IsRunFromGUI reports whether the process was started by double-clicking
// it. Always false off Windows.
func IsRunFromGUI() bool { return false }

// HideConsoleWindow is a no-op off Windows.
func HideConsoleWindow() {}
