package text

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	t.Run("Empty Input", func(t *testing.T) {
		assert.Equal(t, []string{""}, Split("", DefaultChunkSize, DefaultChunkOverlap))
	})

	t.Run("Whitespace Only", func(t *testing.T) {
		text := "   \n\t  "
		assert.Equal(t, []string{text}, Split(text, DefaultChunkSize, DefaultChunkOverlap))
	})

	t.Run("Short Text Single Chunk", func(t *testing.T) {
		text := strings.Repeat("a", 100)
		chunks := Split(text, DefaultChunkSize, DefaultChunkOverlap)
		require.Len(t, chunks, 1)
		assert.Equal(t, text, chunks[0])
	})

	t.Run("Chunks Are Trimmed", func(t *testing.T) {
		text := "  " + strings.Repeat("b", 150) + "  "
		chunks := Split(text, 100, 0)
		require.Len(t, chunks, 2)
		assert.Equal(t, strings.Repeat("b", 98), chunks[0])
		assert.Equal(t, strings.Repeat("b", 52), chunks[1])
	})

	t.Run("Blank Windows Dropped", func(t *testing.T) {
		text := strings.Repeat("x", 100) + strings.Repeat(" ", 100) + strings.Repeat("y", 100)
		chunks := Split(text, 100, 0)
		assert.Equal(t, []string{strings.Repeat("x", 100), strings.Repeat("y", 100)}, chunks)
	})

	t.Run("Multibyte Characters", func(t *testing.T) {
		text := strings.Repeat("ş", 150)
		chunks := Split(text, 100, 10)
		require.Len(t, chunks, 3)
		assert.Equal(t, 100, len([]rune(chunks[0])))
		assert.Equal(t, 60, len([]rune(chunks[1])))
		assert.Equal(t, 10, len([]rune(chunks[2])))
	})
}

func TestSplit_DefaultDocument(t *testing.T) {
	var sb strings.Builder
	for sb.Len() < 2500 {
		sb.WriteString("abcdefghij")
	}
	text := sb.String()
	require.Len(t, text, 2500)

	windows := Windows(len(text), DefaultChunkSize, DefaultChunkOverlap)
	assert.Equal(t, []Window{
		{Start: 0, End: 1000},
		{Start: 800, End: 1800},
		{Start: 1600, End: 2500},
		{Start: 2300, End: 2500},
	}, windows)

	chunks := Split(text, DefaultChunkSize, DefaultChunkOverlap)
	require.Len(t, chunks, 4)
	assert.Equal(t, text[0:1000], chunks[0])
	assert.Equal(t, text[800:1800], chunks[1])
	assert.Equal(t, text[1600:2500], chunks[2])
	assert.Equal(t, text[2300:2500], chunks[3])
}

func TestWindows_Coverage(t *testing.T) {
	tests := []struct {
		n, size, overlap int
	}{
		{n: 1, size: 1000, overlap: 200},
		{n: 99, size: 1000, overlap: 200},
		{n: 250, size: 100, overlap: 0},
		{n: 1000, size: 1000, overlap: 200},
		{n: 1001, size: 1000, overlap: 200},
		{n: 2500, size: 1000, overlap: 200},
		{n: 5000, size: 300, overlap: 150},
		{n: 7777, size: 512, overlap: 64},
		{n: 400, size: 10, overlap: 500},
	}

	for _, tt := range tests {
		windows := Windows(tt.n, tt.size, tt.overlap)
		require.NotEmpty(t, windows)

		size := max(MinChunkSize, min(tt.size, tt.n))
		overlap := max(0, min(tt.overlap, size/2))

		assert.Equal(t, 0, windows[0].Start)
		assert.Equal(t, tt.n, windows[len(windows)-1].End)
		for i, w := range windows {
			assert.LessOrEqual(t, w.End-w.Start, size)
			assert.Greater(t, w.End, w.Start)
			if i == 0 {
				continue
			}
			prev := windows[i-1]
			assert.Greater(t, w.Start, prev.Start, "windows must advance")
			assert.Equal(t, overlap, prev.End-w.Start, "n=%d window %d", tt.n, i)
		}
	}
}

func TestWindows_Clamping(t *testing.T) {
	t.Run("Chunk Size Raised To Minimum", func(t *testing.T) {
		windows := Windows(500, 10, 0)
		assert.Len(t, windows, 5)
		assert.Equal(t, Window{Start: 0, End: 100}, windows[0])
	})

	t.Run("Overlap Capped At Half", func(t *testing.T) {
		windows := Windows(300, 100, 90)
		require.True(t, len(windows) > 1)
		assert.Equal(t, 50, windows[0].End-windows[1].Start)
	})

	t.Run("Negative Overlap", func(t *testing.T) {
		windows := Windows(300, 100, -5)
		assert.Equal(t, []Window{{0, 100}, {100, 200}, {200, 300}}, windows)
	})

	t.Run("Zero Length", func(t *testing.T) {
		assert.Nil(t, Windows(0, 100, 10))
	})
}

func TestHead(t *testing.T) {
	assert.Equal(t, "", Head("abc", 0))
	assert.Equal(t, "ab", Head("abc", 2))
	assert.Equal(t, "abc", Head("abc", 3))
	assert.Equal(t, "abc", Head("abc", 8000))
	assert.Equal(t, "çğ", Head("çğüş", 2))
}
