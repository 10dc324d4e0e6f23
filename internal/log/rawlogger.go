package log

import (
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"
)

// RawLogger records raw session frames.
type RawLogger interface {
	// Frame logs one frame. in is true for remote->bridge traffic.
	Frame(remote string, in bool, data []byte)
}

type rawLogger struct {
	w  io.Writer
	mu sync.Mutex
}

// NewRaw returns a RawLogger writing to w; a nil w yields a no-op logger.
func NewRaw(w io.Writer) RawLogger {
	return &rawLogger{w: w}
}

func (r *rawLogger) Frame(remote string, in bool, data []byte) {
	if r.w == nil || len(data) == 0 {
		return
	}
	dir := "B->R"
	if in {
		dir = "R->B"
	}
	line := fmt.Sprintf("%s %s %s %d bytes: %s\n",
		time.Now().Format("2006/01/02 15:04:05.000"),
		remote,
		dir,
		len(data),
		spacedHex(data))

	r.mu.Lock()
	_, _ = r.w.Write([]byte(line))
	r.mu.Unlock()
}

func spacedHex(data []byte) string {
	enc := hex.EncodeToString(data)
	out := make([]byte, 0, len(enc)+len(data))
	for i := 0; i < len(enc); i += 2 {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, enc[i], enc[i+1])
	}
	return string(out)
}
