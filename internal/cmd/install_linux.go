//go:build linux

package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const (
	serviceName = "padbridge.service"
	servicePath = "/etc/systemd/system/padbridge.service"
	// udevRulePath grants the input group write access to /dev/uinput.
	udevRulePath = "/etc/udev/rules.d/60-padbridge-uinput.rules"
	udevRule     = `KERNEL=="uinput", SUBSYSTEM=="misc", MODE="0660", GROUP="input", OPTIONS+="static_node=uinput"` + "\n"
)

func install(logger *slog.Logger, args []string) error {
	exePath, err := currentExecutable()
	if err != nil {
		return err
	}

	if err := os.WriteFile(udevRulePath, []byte(udevRule), 0o644); err != nil {
		return err
	}
	if err := runCommand("udevadm", "control", "--reload-rules"); err != nil {
		logger.Warn("udev reload failed", "error", err)
	}

	unit := systemdUnitContent(exePath, args)
	if err := os.WriteFile(servicePath, []byte(unit), 0o644); err != nil {
		return err
	}

	steps := [][]string{
		{"daemon-reload"},
		{"enable", serviceName},
		{"restart", serviceName},
	}
	for _, a := range steps {
		if err := runCommand("systemctl", a...); err != nil {
			return err
		}
	}

	logger.Info("padbridge systemd service installed", "path", servicePath, "exe", exePath)
	return nil
}

func uninstall(logger *slog.Logger) error {
	var errs []error

	if err := runCommand("systemctl", "stop", serviceName); err != nil {
		errs = append(errs, err)
	}
	if err := runCommand("systemctl", "disable", serviceName); err != nil {
		errs = append(errs, err)
	}
	for _, p := range []string{servicePath, udevRulePath} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	if err := runCommand("systemctl", "daemon-reload"); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	logger.Info("padbridge systemd service removed", "path", servicePath)
	return nil
}

func systemdUnitContent(exePath string, args []string) string {
	workingDir := filepath.Dir(exePath)
	execStart := fmt.Sprintf("%q serve", exePath)
	for _, a := range args {
		execStart += " " + fmt.Sprintf("%q", a)
	}
	return fmt.Sprintf(`[Unit]
Description=padbridge session server
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
ExecStart=%s
WorkingDirectory=%s
Restart=on-failure

[Install]
WantedBy=multi-user.target
`, execStart, workingDir)
}

func runCommand(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s failed: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(string(output)))
	}
	return nil
}

func currentExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(exe)
}
