package attrack

import (
	"bytes"
	"strings"
)

// Framer splits a TCP byte stream into complete $-terminated messages. Each
// connection owns exactly one Framer; the buffer is bounded so a device that
// never sends a terminator cannot grow it without limit.
type Framer struct {
	buf      []byte
	max      int
	skipping bool
}

// DefaultMaxFrameBytes bounds the frame buffer when no limit is configured.
const DefaultMaxFrameBytes = 8192

func NewFramer(maxBytes int) *Framer {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFrameBytes
	}
	return &Framer{max: maxBytes}
}

// Push feeds one read's worth of bytes and returns every complete frame it
// closes, in arrival order, without the terminator. A frame that would exceed
// the buffer limit is discarded wholesale and counted in dropped; the framer
// then resynchronizes at the next terminator. Empty frames (back-to-back
// terminators) are skipped. Leftover bytes stay buffered for the next Push.
func (f *Framer) Push(chunk []byte) (frames []string, dropped int) {
	for len(chunk) > 0 {
		i := bytes.IndexByte(chunk, Terminator)
		if i < 0 {
			if f.skipping {
				return frames, dropped
			}
			if len(f.buf)+len(chunk) > f.max {
				f.buf = f.buf[:0]
				f.skipping = true
				dropped++
				return frames, dropped
			}
			f.buf = append(f.buf, chunk...)
			return frames, dropped
		}

		switch {
		case f.skipping:
			f.skipping = false
		case len(f.buf)+i > f.max:
			f.buf = f.buf[:0]
			dropped++
		default:
			// Devices pad with CR/LF between messages; those are not frames.
			frame := strings.TrimSpace(string(append(f.buf, chunk[:i]...)))
			f.buf = f.buf[:0]
			if frame != "" {
				frames = append(frames, frame)
			}
		}
		chunk = chunk[i+1:]
	}
	return frames, dropped
}

// Pending reports how many bytes are buffered awaiting a terminator. An
// incomplete trailing message at stream end is simply never emitted.
func (f *Framer) Pending() int {
	return len(f.buf)
}
