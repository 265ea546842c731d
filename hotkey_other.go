//go:build !windows

package main

// RegisterToggleHotkey is a no-op outside Windows; the global keyboard hook
// uses user32 directly.
func (a *App) RegisterToggleHotkey() {}
