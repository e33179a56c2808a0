package text

import "strings"

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200

	// MinChunkSize is the smallest window Split will use, regardless of the
	// requested size.
	MinChunkSize = 100
)

// Window is a half-open [Start, End) range of rune offsets into a text.
type Window struct {
	Start int
	End   int
}

// Windows computes the sliding windows Split cuts a text of n runes into.
// chunkSize is clamped to [MinChunkSize, n] and overlap to [0, chunkSize/2].
// Each window starts overlap runes before the previous one ended. The last
// window always ends at n; a trailing window that would not advance the start
// offset ends the walk.
func Windows(n, chunkSize, overlap int) []Window {
	if n <= 0 {
		return nil
	}

	chunkSize = max(MinChunkSize, min(chunkSize, n))
	overlap = max(0, min(overlap, chunkSize/2))

	var windows []Window
	start := 0
	for start < n {
		end := min(start+chunkSize, n)
		windows = append(windows, Window{Start: start, End: end})

		next := end - overlap
		if next <= start {
			break
		}
		start = next
	}
	return windows
}

// Split cuts text into overlapping chunks of roughly chunkSize characters.
// Chunks are trimmed of surrounding whitespace and blank chunks are dropped.
// It never returns an empty slice: empty input yields [""], and input whose
// chunks all trim to nothing is returned whole.
func Split(text string, chunkSize, overlap int) []string {
	if text == "" {
		return []string{""}
	}

	runes := []rune(text)
	var chunks []string
	for _, w := range Windows(len(runes), chunkSize, overlap) {
		chunk := strings.TrimSpace(string(runes[w.Start:w.End]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
	}

	if len(chunks) == 0 {
		return []string{text}
	}
	return chunks
}

// Head returns at most n leading characters of text.
func Head(text string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range text {
		if i == n {
			return text[:pos]
		}
		i++
	}
	return text
}
