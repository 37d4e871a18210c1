package chunker

import (
	"strings"
	"testing"
)

func TestSplitEmpty(t *testing.T) {
	if got := Split("", 1200, 200); got != nil {
		t.Fatalf("expected nil for empty input, got %d chunks", len(got))
	}
}

func TestSplitShortInput(t *testing.T) {
	text := strings.Repeat("A", 1200)
	got := Split(text, 1200, 200)
	if len(got) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(got))
	}
	if got[0] != text {
		t.Fatalf("single chunk must equal the input")
	}
}

func TestSplitWindowBoundaries(t *testing.T) {
	text := strings.Repeat("A", 1500)
	got := Split(text, 1200, 200)
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(got))
	}
	if len(got[0]) != 1200 {
		t.Fatalf("first chunk length = %d, want 1200", len(got[0]))
	}
	if len(got[1]) != 500 {
		t.Fatalf("second chunk length = %d, want 500", len(got[1]))
	}
	runes := []rune(text)
	if got[1] != string(runes[1000:1500]) {
		t.Fatalf("second chunk must start at offset 1000 and end at the text end")
	}
}

func TestSplitOverlapRegion(t *testing.T) {
	var b strings.Builder
	for i := 0; b.Len() < 3000; i++ {
		b.WriteRune(rune('a' + i%26))
	}
	text := b.String()

	chunks := Split(text, 1000, 100)
	step := 1000 - 100
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		cur := []rune(chunks[i])
		overlapPrev := string(prev[len(prev)-100:])
		overlapCur := string(cur[:100])
		if i < len(chunks)-1 && overlapPrev != overlapCur {
			t.Fatalf("chunk %d does not share %d runes with its predecessor", i, 100)
		}
	}

	// Every rune of the input must be covered by some chunk.
	runes := []rune(text)
	for i, c := range chunks {
		start := i * step
		if c != string(runes[start:start+len([]rune(c))]) && i != len(chunks)-1 {
			t.Fatalf("chunk %d does not match its window", i)
		}
	}
	last := chunks[len(chunks)-1]
	if !strings.HasSuffix(text, last) {
		t.Fatalf("final chunk must end exactly at the end of the text")
	}
}

func TestSplitMultibyteRunes(t *testing.T) {
	text := strings.Repeat("案", 25)
	chunks := Split(text, 10, 2)
	for i, c := range chunks {
		if n := len([]rune(c)); n > 10 {
			t.Fatalf("chunk %d has %d runes, want <= 10", i, n)
		}
	}
	if !strings.HasSuffix(text, chunks[len(chunks)-1]) {
		t.Fatalf("final chunk must align with the end of the text")
	}
}
