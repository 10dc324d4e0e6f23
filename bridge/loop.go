package bridge

import (
	"context"
	"errors"
	"time"

	"github.com/Alia5/padbridge/controller"
	"github.com/Alia5/padbridge/internal/log"
)

// UpdateInput runs one input cycle: poll, then either detach everything
// (inactive source) or translate, reconcile and push. Failures end the
// cycle early and are retried on the next one.
func (b *Bridge) UpdateInput() {
	if b.reg == nil {
		return
	}
	if err := b.source.GetInput(); err != nil {
		if !errors.Is(err, controller.ErrNoInput) {
			b.trace("input poll failed", "error", &SourceError{Op: "get input", Err: err})
		}
		return
	}

	if !b.source.IsActive() {
		b.reg.Teardown()
		return
	}

	sample := b.source.GetNormalizedSample()
	if err := b.reg.Translate(&sample, b.swap); err != nil {
		b.logger.Debug("sample dropped", "error", err)
	}
	b.reg.Reconcile()
	if err := b.reg.PushState(); err != nil {
		b.trace("state push failed", "error", err)
	}
}

// UpdateOutput runs one output cycle: send one queued packet, or when none
// is pending forward the host's vibration as rumble.
func (b *Bridge) UpdateOutput() {
	if b.reg == nil {
		return
	}
	err := b.source.DrainOutbound()
	if err == nil {
		return
	}
	if !errors.Is(err, controller.ErrNoOutbound) {
		b.trace("outbound drain failed", "error", &SourceError{Op: "drain outbound", Err: err})
	}
	if !b.caps.Supports(controller.CapRumble) {
		return
	}
	v, err := b.host.GetVibrationValue(b.opts.vibration)
	if err != nil {
		b.trace("vibration query failed", "error", &HostServiceError{Op: "get vibration", Slot: -1, Err: err})
		return
	}
	b.source.SetRumble(ScaleAmplitude(v.AmpHigh), ScaleAmplitude(v.AmpLow))
}

func (b *Bridge) inputLoop(ctx context.Context) {
	defer b.wg.Done()
	b.logger.Debug("input loop started")
	defer b.logger.Debug("input loop stopped")

	for ctx.Err() == nil {
		if !b.paused() {
			b.UpdateInput()
		}
		if !wait(ctx, b.opts.inputInterval) {
			return
		}
	}
}

func (b *Bridge) outputLoop(ctx context.Context) {
	defer b.wg.Done()
	b.logger.Debug("output loop started")
	defer b.logger.Debug("output loop stopped")

	for ctx.Err() == nil {
		if !b.paused() {
			b.UpdateOutput()
		}
		if !wait(ctx, b.opts.outputInterval) {
			return
		}
	}
}

func (b *Bridge) paused() bool {
	return b.opts.gate != nil && b.opts.gate.Paused()
}

func (b *Bridge) trace(msg string, args ...any) {
	b.logger.Log(context.Background(), log.LevelTrace, msg, args...)
}

// wait sleeps for d unless ctx ends first. It reports whether the loop
// should continue.
func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
