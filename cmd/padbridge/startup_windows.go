//go:build windows

package main

import (
	"log/slog"
	"os"
	"slices"

	"github.com/Alia5/padbridge/internal/util"
)

// A double-clicked binary has no command; run serve.
func init() {
	if !util.IsRunFromGUI() || (len(os.Args) > 1 && os.Args[1] == "serve") {
		return
	}
	slog.Info("started without a console, running serve")
	os.Args = slices.Insert(os.Args, 1, "serve")
}
