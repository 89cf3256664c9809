package ingest

import (
	"slices"
	"strings"
	"testing"
)

// para builds a paragraph of n bytes of the same letter, so tests can steer
// chunk sizes precisely and still tell paragraphs apart.
func para(c byte, n int) string {
	return strings.Repeat(string(c), n)
}

func TestSplitTextPacksSmallParagraphs(t *testing.T) {
	a, b, c := para('a', 120), para('b', 130), para('c', 140)
	text := a + "\n\n" + b + "\n\n" + c

	got := SplitText(text)
	want := []string{text}
	if !slices.Equal(got, want) {
		t.Errorf("SplitText() = %d chunks, want one chunk equal to the input", len(got))
	}
}

func TestSplitTextExactBoundaryStillPacks(t *testing.T) {
	// 700 + 800 = MaxChunkSize exactly; only exceeding the limit flushes.
	a, b := para('a', 700), para('b', 800)

	got := SplitText(a + "\n\n" + b)
	want := []string{a + "\n\n" + b}
	if !slices.Equal(got, want) {
		t.Errorf("SplitText() = %d chunks, want 1 packed chunk at the exact size limit", len(got))
	}
}

func TestSplitTextOverflowFlushes(t *testing.T) {
	// 700 + 801 exceeds MaxChunkSize by one byte, so the first paragraph is
	// flushed as its own chunk.
	a, b := para('a', 700), para('b', 801)

	got := SplitText(a + "\n\n" + b)
	want := []string{a, b}
	if !slices.Equal(got, want) {
		t.Errorf("SplitText() = %v chunk sizes, want [700 801]", chunkSizes(got))
	}
}

func TestSplitTextDropsShortChunkOnFlush(t *testing.T) {
	// The 80-byte fragment is below MinChunkSize when the next paragraph
	// forces a flush, so it disappears instead of becoming a tiny chunk.
	short, big := para('a', 80), para('b', 1490)

	got := SplitText(short + "\n\n" + big)
	want := []string{big}
	if !slices.Equal(got, want) {
		t.Errorf("SplitText() = %v chunk sizes, want only the 1490-byte chunk", chunkSizes(got))
	}
}

func TestSplitTextKeepsOversizedParagraphWhole(t *testing.T) {
	huge, tail := para('a', 5000), para('b', 200)

	got := SplitText(huge + "\n\n" + tail)
	want := []string{huge, tail}
	if !slices.Equal(got, want) {
		t.Errorf("SplitText() = %v chunk sizes, want the 5000-byte paragraph unsplit", chunkSizes(got))
	}
}

func TestSplitTextSkipsBlankParagraphs(t *testing.T) {
	a, b := para('a', 200), para('b', 200)
	text := "  \n\n" + a + "\n\n\n\n" + b + "\n\n \t "

	got := SplitText(text)
	want := []string{a + "\n\n" + b}
	if !slices.Equal(got, want) {
		t.Errorf("SplitText() = %q, want the two real paragraphs packed together", got)
	}
}

func TestSplitTextMinimumSize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", nil},
		{"whitespace only", "   \n \t ", nil},
		{"blank paragraphs", "\n\n\n\n", nil},
		{"final chunk below minimum", para('a', 99), nil},
		{"final chunk at minimum", para('a', 100), []string{para('a', 100)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitText(tt.text)
			if !slices.Equal(got, tt.want) {
				t.Errorf("SplitText(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func chunkSizes(chunks []string) []int {
	sizes := make([]int, len(chunks))
	for i, c := range chunks {
		sizes[i] = len(c)
	}
	return sizes
}
