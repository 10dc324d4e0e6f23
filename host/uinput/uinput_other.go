//go:build !linux

package uinput

import (
	"errors"
	"log/slog"

	"github.com/Alia5/padbridge/hdl"
)

// ErrUnsupported is returned outside Linux.
var ErrUnsupported = errors.New("uinput host is only available on linux")

// Host is unavailable on this platform.
type Host struct{}

// New always fails on this platform.
func New(Config, *slog.Logger) (*Host, error) { return nil, ErrUnsupported }

func (*Host) Attach(hdl.Identity) (hdl.Handle, error) { return 0, ErrUnsupported }
func (*Host) Detach(hdl.Handle) error                 { return ErrUnsupported }
func (*Host) IsAttached(hdl.Handle) (bool, error)     { return false, ErrUnsupported }
func (*Host) SetState(hdl.Handle, hdl.State) error    { return ErrUnsupported }
func (*Host) Close() error                            { return nil }

func (*Host) GetVibrationValue(hdl.VibrationHandle) (hdl.VibrationValue, error) {
	return hdl.VibrationValue{}, ErrUnsupported
}

var _ hdl.Service = (*Host)(nil)
