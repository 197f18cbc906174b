package attrack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	friMsg = "+RESP:GTFRI,090302,865083030086961,,0,0,1,1,0.0,92,70.0,-46.778597,-23.562412,20250724055410,0724,0011,1FBB,520B,00,0.0,,,,100,210100,,,,20250724055411,0497$"
	hbdMsg = "+ACK:GTHBD,090302,865083030086961,,20250724055411,0497$"
)

func TestFramerSplitsAtEveryBoundary(t *testing.T) {
	stream := friMsg + hbdMsg + friMsg

	// The same logical stream must frame identically no matter where the
	// reads are split.
	for cut := 1; cut < len(stream)-1; cut++ {
		f := NewFramer(0)
		var got []string
		frames, dropped := f.Push([]byte(stream[:cut]))
		require.Zero(t, dropped)
		got = append(got, frames...)
		frames, dropped = f.Push([]byte(stream[cut:]))
		require.Zero(t, dropped)
		got = append(got, frames...)

		require.Len(t, got, 3, "split at %d", cut)
		assert.Equal(t, friMsg[:len(friMsg)-1], got[0])
		assert.Equal(t, hbdMsg[:len(hbdMsg)-1], got[1])
		assert.Equal(t, friMsg[:len(friMsg)-1], got[2])
	}
}

func TestFramerMultipleMessagesInOneRead(t *testing.T) {
	f := NewFramer(0)
	frames, dropped := f.Push([]byte(hbdMsg + hbdMsg + hbdMsg))
	assert.Zero(t, dropped)
	assert.Len(t, frames, 3)
}

func TestFramerSkipsSeparatorNoise(t *testing.T) {
	f := NewFramer(0)
	frames, dropped := f.Push([]byte(hbdMsg + "\r\n" + hbdMsg + "\r\n$"))
	assert.Zero(t, dropped)
	require.Len(t, frames, 2)
	for _, fr := range frames {
		assert.NotContains(t, fr, string(rune(Terminator)))
		assert.NotEmpty(t, fr)
	}
}

func TestFramerOversizedFrameDiscarded(t *testing.T) {
	f := NewFramer(16)

	big := make([]byte, 64)
	for i := range big {
		big[i] = 'A'
	}
	frames, dropped := f.Push(big)
	assert.Empty(t, frames)
	assert.Equal(t, 1, dropped)

	// More oversized noise does not count again until resync.
	frames, dropped = f.Push(big)
	assert.Empty(t, frames)
	assert.Zero(t, dropped)

	// After the terminator the framer resynchronizes cleanly.
	frames, dropped = f.Push([]byte("$+ACK:GTHBD,1,2$"))
	assert.Zero(t, dropped)
	require.Len(t, frames, 1)
	assert.Equal(t, "+ACK:GTHBD,1,2", frames[0])
}

func TestFramerOversizedSplitAcrossReads(t *testing.T) {
	f := NewFramer(8)
	frames, dropped := f.Push([]byte("AAAAAA"))
	assert.Empty(t, frames)
	assert.Zero(t, dropped)

	frames, dropped = f.Push([]byte("BBBBBB$ok$"))
	assert.Equal(t, 1, dropped)
	require.Len(t, frames, 1)
	assert.Equal(t, "ok", frames[0])
}

func TestFramerIncompleteTailStaysPending(t *testing.T) {
	f := NewFramer(0)
	frames, dropped := f.Push([]byte("+RESP:GTFRI,090302,86508"))
	assert.Empty(t, frames)
	assert.Zero(t, dropped)
	assert.Equal(t, 24, f.Pending())
	// Stream end with a partial buffer: the bytes are simply abandoned with
	// the framer, never decoded.
}
