package audio

import (
	"encoding/binary"
	"math"
	"sync"
)

const DefaultLevelWindow = 1024

// LevelMeter keeps the most recent window of s16le PCM and reports its
// normalised RMS loudness. It keeps no history beyond that window.
type LevelMeter struct {
	gain float64

	mu      sync.Mutex
	window  []int16
	next    int
	filled  int
	carry   []byte
	hasData bool
}

func NewLevelMeter(windowSize int, gain float64) *LevelMeter {
	if windowSize <= 0 {
		windowSize = DefaultLevelWindow
	}
	if gain <= 0 {
		gain = 1
	}
	return &LevelMeter{
		gain:   gain,
		window: make([]int16, windowSize),
	}
}

// Write appends little-endian 16-bit samples to the window.
func (m *LevelMeter) Write(pcm []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.carry) > 0 {
		pcm = append(m.carry, pcm...)
		m.carry = nil
	}
	even := len(pcm) &^ 1
	for i := 0; i < even; i += 2 {
		m.window[m.next] = int16(binary.LittleEndian.Uint16(pcm[i:]))
		m.next = (m.next + 1) % len(m.window)
		if m.filled < len(m.window) {
			m.filled++
		}
	}
	if even < len(pcm) {
		m.carry = []byte{pcm[even]}
	}
	m.hasData = m.filled > 0
}

// Sample returns the loudness of the current window in [0,1], or 0 without a source.
func (m *LevelMeter) Sample() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.hasData {
		return 0
	}

	var sum float64
	for i := 0; i < m.filled; i++ {
		v := float64(m.window[i]) / 32768.0
		sum += v * v
	}
	level := math.Sqrt(sum/float64(m.filled)) * m.gain
	if math.IsNaN(level) || level < 0 {
		return 0
	}
	return math.Min(level, 1)
}

// Reset detaches the meter from its source.
func (m *LevelMeter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next = 0
	m.filled = 0
	m.carry = nil
	m.hasData = false
}
