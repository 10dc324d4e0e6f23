package bridge_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Alia5/padbridge/bridge"
)

func TestErrorMessages(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		err  error
		want string
	}{
		{&bridge.SourceError{Op: "get input", Err: cause}, "source get input: boom"},
		{&bridge.HostServiceError{Op: "attach", Slot: 2, Err: cause}, "host attach (slot 2): boom"},
		{&bridge.HostServiceError{Op: "get vibration", Slot: -1, Err: cause}, "host get vibration: boom"},
		{&bridge.ConfigError{Field: "slots", Detail: "9 not in [1,8]"}, "invalid configuration slots: 9 not in [1,8]"},
		{&bridge.ConfigError{Field: "controller", Err: cause}, "invalid configuration controller: boom"},
	}
	for _, tt := range tests {
		assert.EqualError(t, tt.err, tt.want)
		if tt.want != "invalid configuration slots: 9 not in [1,8]" {
			assert.ErrorIs(t, tt.err, cause)
		}
	}
}
