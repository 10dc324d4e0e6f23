// Package apitypes holds the JSON documents exchanged on a session's
// request/response line.
package apitypes

import (
	"encoding/json"
	"fmt"

	"github.com/Alia5/padbridge/controller"
)

// ApiError represents an RFC 7807 (problem+json) error response.
type ApiError struct {
	// Status is the HTTP-style status code (e.g., 400, 401, 500)
	Status int `json:"status"`
	// Title is a short, human-readable summary of the problem type
	Title string `json:"title"`
	// Detail is a human-readable explanation specific to this occurrence
	Detail string `json:"detail"`
}

func (e ApiError) Error() string {
	if e.Status == 0 && e.Title == "" {
		return "unknown error"
	}
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Title, e.Detail)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Title, e.Detail)
}

// SessionOptions is the optional JSON payload of a session request. Unset
// fields keep the server's defaults.
type SessionOptions struct {
	BodyColor         *controller.RGBA `json:"bodyColor,omitempty"`
	ButtonsColor      *controller.RGBA `json:"buttonsColor,omitempty"`
	LeftGripColor     *controller.RGBA `json:"leftGripColor,omitempty"`
	RightGripColor    *controller.RGBA `json:"rightGripColor,omitempty"`
	SwapDpadAndLstick *bool            `json:"swapDpadAndLstick,omitempty"`
	Slots             *int             `json:"slots,omitempty"`
}

// UnmarshalJSON accepts colors either as strings ("#RRGGBB", "#RRGGBBAA",
// "0x...") or as JSON numbers holding 0xRRGGBBAA.
func (o *SessionOptions) UnmarshalJSON(data []byte) error {
	var raw struct {
		BodyColor         any   `json:"bodyColor,omitempty"`
		ButtonsColor      any   `json:"buttonsColor,omitempty"`
		LeftGripColor     any   `json:"leftGripColor,omitempty"`
		RightGripColor    any   `json:"rightGripColor,omitempty"`
		SwapDpadAndLstick *bool `json:"swapDpadAndLstick,omitempty"`
		Slots             *int  `json:"slots,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	colors := []struct {
		name string
		v    any
		dst  **controller.RGBA
	}{
		{"bodyColor", raw.BodyColor, &o.BodyColor},
		{"buttonsColor", raw.ButtonsColor, &o.ButtonsColor},
		{"leftGripColor", raw.LeftGripColor, &o.LeftGripColor},
		{"rightGripColor", raw.RightGripColor, &o.RightGripColor},
	}
	for _, c := range colors {
		if c.v == nil {
			continue
		}
		val, err := parseColor(c.v)
		if err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
		*c.dst = &val
	}
	o.SwapDpadAndLstick = raw.SwapDpadAndLstick
	o.Slots = raw.Slots
	return nil
}

// Apply overlays the set options onto cfg.
func (o *SessionOptions) Apply(cfg *controller.Config) {
	set := func(dst *controller.RGBA, v *controller.RGBA) {
		if v != nil {
			*dst = *v
		}
	}
	set(&cfg.BodyColor, o.BodyColor)
	set(&cfg.ButtonsColor, o.ButtonsColor)
	set(&cfg.LeftGripColor, o.LeftGripColor)
	set(&cfg.RightGripColor, o.RightGripColor)
	if o.SwapDpadAndLstick != nil {
		cfg.SwapDPADandLSTICK = *o.SwapDpadAndLstick
	}
}

func parseColor(v any) (controller.RGBA, error) {
	switch val := v.(type) {
	case float64:
		if val < 0 || val > 0xFFFFFFFF || val != float64(uint32(val)) {
			return 0, fmt.Errorf("value %v is not a 32-bit color", val)
		}
		return controller.RGBA(uint32(val)), nil
	case string:
		return controller.ParseRGBA(val)
	default:
		return 0, fmt.Errorf("expected number or color string, got %T", v)
	}
}

// SessionResponse acknowledges a session request. The stream starts right
// after it.
type SessionResponse struct {
	Status string `json:"status"`
	Family string `json:"family"`
	Slots  int    `json:"slots"`
}

// FamiliesResponse lists the controller families a server accepts.
type FamiliesResponse struct {
	Families []string `json:"families"`
}
