package cmd

import "log/slog"

// Install registers `padbridge serve` as a system service.
type Install struct {
	Args []string `arg:"" optional:"" help:"Extra flags passed to serve"`
}

// Run is called by Kong when the install command is executed.
func (i *Install) Run(logger *slog.Logger) error { return install(logger, i.Args) }

// Uninstall removes the system service.
type Uninstall struct{}

// Run is called by Kong when the uninstall command is executed.
func (u *Uninstall) Run(logger *slog.Logger) error { return uninstall(logger) }
