package notify

import (
	"io"
	"os"
)

// BellPlayer is the daemon's audio cue: it rings the terminal bell. The
// engine throttles cues upstream, so Play itself is unthrottled.
type BellPlayer struct {
	W io.Writer
}

// NewBellPlayer creates a BellPlayer writing to stderr.
func NewBellPlayer() *BellPlayer {
	return &BellPlayer{W: os.Stderr}
}

// Play rings the bell.
func (b *BellPlayer) Play() {
	_, _ = b.W.Write([]byte("\a"))
}
