package audio

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeWAVHeader(t *testing.T) {
	t.Parallel()

	pcm := pcmFrame(1, 2, 3, 4)
	wav := EncodeWAV(pcm, 16000, 1)

	require.Len(t, wav, wavHeaderSize+len(pcm))
	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, "data", string(wav[36:40]))
	assert.Equal(t, uint32(36+len(pcm)), binary.LittleEndian.Uint32(wav[4:8]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[22:24]))
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(wav[24:28]))
	assert.Equal(t, uint32(32000), binary.LittleEndian.Uint32(wav[28:32]))
	assert.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(wav[40:44]))
	assert.Equal(t, pcm, wav[44:])
}

func TestEncodeWAVDropsTrailingHalfSample(t *testing.T) {
	t.Parallel()

	wav := EncodeWAV([]byte{1, 2, 3}, 0, 0)
	assert.Len(t, wav, wavHeaderSize+2)
}

func TestPCMDurationMillis(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1000, PCMDurationMillis(32000, 16000, 1))
	assert.Equal(t, 250, PCMDurationMillis(8000, 16000, 1))
	assert.Zero(t, PCMDurationMillis(100, 0, 1))
}
