package text

import (
	"strings"

	"policyqa/internal/extractor"
)

// Chunk is a bounded slice of one page's text, tagged with enough metadata
// to cite the page and to derive a stable record ID.
type Chunk struct {
	Text        string
	PageNumber  int
	SourceType  string
	ChunkIndex  int
	TotalChunks int
}

// Separators from coarsest to finest. The final empty separator falls back
// to splitting on character boundaries, so no chunk ever exceeds the budget.
var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Split breaks text into segments of at most chunkSize characters, with
// consecutive segments sharing up to overlap characters of context. It is a
// pure function of its inputs: identical inputs always produce identical
// output, which the record ID scheme depends on.
func Split(text string, chunkSize, overlap int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return split(text, chunkSize, overlap, defaultSeparators)
}

func split(text string, chunkSize, overlap int, separators []string) []string {
	sep := separators[len(separators)-1]
	var remaining []string
	for i, s := range separators {
		if s == "" || strings.Contains(text, s) {
			sep = s
			remaining = separators[i+1:]
			break
		}
	}

	var pieces []string
	if sep == "" {
		pieces = splitRunes(text)
	} else {
		pieces = strings.Split(text, sep)
	}

	var chunks []string
	var fitting []string

	for _, piece := range pieces {
		if len(piece) < chunkSize {
			fitting = append(fitting, piece)
			continue
		}
		if len(fitting) > 0 {
			chunks = append(chunks, merge(fitting, sep, chunkSize, overlap)...)
			fitting = nil
		}
		if len(remaining) == 0 {
			chunks = append(chunks, piece)
		} else {
			chunks = append(chunks, split(piece, chunkSize, overlap, remaining)...)
		}
	}
	if len(fitting) > 0 {
		chunks = append(chunks, merge(fitting, sep, chunkSize, overlap)...)
	}

	return chunks
}

// merge greedily packs pieces into chunks of at most chunkSize characters,
// then carries up to overlap trailing characters of each chunk into the
// next one.
func merge(pieces []string, sep string, chunkSize, overlap int) []string {
	var chunks []string
	var current []string
	total := 0

	join := func(parts []string) string {
		return strings.TrimSpace(strings.Join(parts, sep))
	}

	for _, piece := range pieces {
		l := len(piece)
		if total+l+sepLen(sep, len(current) > 0) > chunkSize && total > 0 {
			if doc := join(current); doc != "" {
				chunks = append(chunks, doc)
			}
			// Shrink the window until the carried context fits the overlap
			// budget and leaves room for the next piece.
			for total > overlap || (total+l+sepLen(sep, len(current) > 0) > chunkSize && total > 0) {
				total -= len(current[0]) + sepLen(sep, len(current) > 1)
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += l + sepLen(sep, len(current) > 1)
	}

	if doc := join(current); doc != "" {
		chunks = append(chunks, doc)
	}
	return chunks
}

func sepLen(sep string, counted bool) int {
	if counted {
		return len(sep)
	}
	return 0
}

func splitRunes(text string) []string {
	runes := []rune(text)
	out := make([]string, len(runes))
	for i, r := range runes {
		out[i] = string(r)
	}
	return out
}

// ChunkPages splits each page independently and stamps dense, 0-based chunk
// indices plus the per-page chunk count on every chunk. Pages whose text is
// empty or whitespace-only contribute nothing.
func ChunkPages(pages []extractor.Page, chunkSize, overlap int) []Chunk {
	var out []Chunk
	for _, page := range pages {
		segments := Split(page.Text, chunkSize, overlap)
		for i, segment := range segments {
			out = append(out, Chunk{
				Text:        segment,
				PageNumber:  page.Number,
				SourceType:  string(page.SourceType),
				ChunkIndex:  i,
				TotalChunks: len(segments),
			})
		}
	}
	return out
}
