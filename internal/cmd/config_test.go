package cmd

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	toml "github.com/pelletier/go-toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	yaml "gopkg.in/yaml.v3"

	"github.com/Alia5/padbridge/controller"
)

func TestConfigKey(t *testing.T) {
	tests := map[string]string{
		"Addr":              "addr",
		"RequireAuth":       "require_auth",
		"SwapDpadAndLstick": "swap_dpad_and_lstick",
		"URL":               "url",
		"HTTPPort":          "http_port",
	}
	for in, want := range tests {
		assert.Equal(t, want, configKey(in), in)
	}
}

func TestConfigInitServe(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		format string
		decode func([]byte, any) error
	}{
		{"json", json.Unmarshal},
		{"yaml", yaml.Unmarshal},
		{"toml", func(b []byte, v any) error {
			tree, err := toml.LoadBytes(b)
			if err != nil {
				return err
			}
			*v.(*map[string]any) = tree.ToMap()
			return nil
		}},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			dest := filepath.Join(dir, "serve."+tt.format)
			require.NoError(t, (&ConfigInit{Command: "serve", Format: tt.format, Output: dest}).Run())

			data, err := os.ReadFile(dest)
			require.NoError(t, err)
			var root map[string]any
			require.NoError(t, tt.decode(data, &root))

			sess, ok := root["session"].(map[string]any)
			require.True(t, ok, "session section")
			assert.Equal(t, ":3243", sess["addr"])
			assert.Equal(t, "5s", sess["handshake_timeout"])
			assert.NotContains(t, sess, "password")

			br, ok := root["bridge"].(map[string]any)
			require.True(t, ok, "bridge section")
			assert.Equal(t, "#323232FF", br["body_color"])
			assert.Contains(t, br, "swap_dpad_and_lstick")
			assert.Equal(t, "uinput", root["host"])
		})
	}
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "send.json")
	require.NoError(t, (&ConfigInit{Command: "send", Format: "json", Output: dest}).Run())
	assert.Error(t, (&ConfigInit{Command: "send", Format: "json", Output: dest}).Run())
	assert.NoError(t, (&ConfigInit{Command: "send", Format: "json", Output: dest, Force: true}).Run())

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	var root map[string]any
	require.NoError(t, json.Unmarshal(data, &root))
	assert.Equal(t, "localhost:3243", root["addr"])
	assert.NotContains(t, root, "password")
}

func TestBridgeFlagsDefaults(t *testing.T) {
	d := BridgeFlags{Slots: 2, BodyColor: 0xFF0000FF, SwapDpadAndLstick: true}.Defaults()
	assert.Equal(t, 2, d.Slots)
	assert.Equal(t, uint32(0xFF0000FF), d.Controller.BodyColor.Value())
	assert.Equal(t, uint32(0x0F0F0FFF), d.Controller.ButtonsColor.Value())
	assert.Equal(t, uint32(0x323232FF), d.Controller.RightGripColor.Value())
	assert.True(t, d.Controller.SwapDPADandLSTICK)
}

func TestServeColorFlags(t *testing.T) {
	var cli struct {
		Serve Serve `cmd:""`
	}
	parser, err := kong.New(&cli)
	require.NoError(t, err)

	_, err = parser.Parse([]string{"serve", "--bridge.body-color=#ff0000"})
	require.NoError(t, err)
	d := cli.Serve.Bridge.Defaults()
	assert.Equal(t, controller.RGBA(0xFF0000FF), d.Controller.BodyColor)
	assert.Equal(t, controller.RGBA(0x0F0F0FFF), d.Controller.ButtonsColor)

	_, err = parser.Parse([]string{"serve", "--bridge.body-color=red"})
	assert.Error(t, err)
}

func TestTemplateValue(t *testing.T) {
	tests := []struct {
		name string
		typ  reflect.Type
		def  string
		want any
	}{
		{"color keeps canonical form", reflect.TypeOf(controller.RGBA(0)), "#0F0F0FFF", "#0F0F0FFF"},
		{"short color gains alpha", reflect.TypeOf(controller.RGBA(0)), "#ff0000", "#FF0000FF"},
		{"hex color", reflect.TypeOf(controller.RGBA(0)), "0x11223344", "#11223344"},
		{"unset color", reflect.TypeOf(controller.RGBA(0)), "", "#00000000"},
		{"bad color kept verbatim", reflect.TypeOf(controller.RGBA(0)), "red", "red"},
		{"duration", reflect.TypeOf(time.Duration(0)), "1000ms", "1s"},
		{"unset duration", reflect.TypeOf(time.Duration(0)), "", "0s"},
		{"int", reflect.TypeOf(0), "4", int64(4)},
		{"bool", reflect.TypeOf(false), "true", true},
		{"unset bool", reflect.TypeOf(false), "", false},
		{"string", reflect.TypeOf(""), "uinput", "uinput"},
		{"unsupported", reflect.TypeOf([]string{}), "a,b", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, templateValue(tt.typ, tt.def))
		})
	}
}

func TestLoadPasswordGeneratesOnce(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "sub", "padbridge.key.txt")
	s := &Serve{KeyFile: keyFile}

	first, err := s.loadPassword(discardLogger())
	require.NoError(t, err)
	assert.Len(t, first, 16)

	second, err := s.loadPassword(discardLogger())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	require.NoError(t, os.WriteFile(keyFile, []byte("  mine\n"), 0o600))
	third, err := s.loadPassword(discardLogger())
	require.NoError(t, err)
	assert.Equal(t, "mine", third)
}

func discardLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }
