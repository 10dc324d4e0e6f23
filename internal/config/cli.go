// Package config holds the root command line of padbridge.
package config

import (
	"github.com/Alia5/padbridge/internal/cmd"
	"github.com/Alia5/padbridge/internal/log"
)

// CLI is the kong root. Values come from flags, then env, then the first
// config file found.
type CLI struct {
	Config string     `help:"Path to a json, yaml or toml config file" type:"path" env:"PADBRIDGE_CONFIG"`
	Log    log.Config `embed:"" prefix:"log."`

	Serve     cmd.Serve         `cmd:"" help:"Run the session server and bridge remote controllers to the host"`
	Send      cmd.Send          `cmd:"" help:"Stream JSON-lines samples to a session server"`
	ConfigCmd cmd.ConfigCommand `cmd:"" name:"config" help:"Configuration helpers"`
	Install   cmd.Install       `cmd:"" help:"Install padbridge serve as a systemd service (linux)"`
	Uninstall cmd.Uninstall     `cmd:"" help:"Remove the systemd service (linux)"`
}
