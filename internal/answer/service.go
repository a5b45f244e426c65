package answer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"policyqa/internal/retrieval"
)

const noAnswerMessage = "No response generated. Please try rephrasing your question."

const promptFmt = `You are a helpful assistant that answers questions based on a financial policy document.

INSTRUCTIONS:
1. Answer ONLY based on the provided context
2. If the information is not in the context, say "I cannot find this information in the document"
3. Always cite the page numbers when referencing information using **[Page X]** format (bold)
4. Format your response using markdown:
   - Use **bold** for important terms and page references
   - Use *italics* for emphasis
   - Use bullet points (-) for lists
   - Use numbered lists (1.) when order matters
   - Use ` + "`code`" + ` formatting for specific policy numbers or codes
   - For tables, use proper markdown table format with | separators and alignment
5. Structure your response clearly with proper markdown formatting

CONTEXT:
%s

QUESTION:
%s

ANSWER (in markdown format):`

// Generator is the external generative model; only its text-in/text-out
// contract matters here.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Result struct {
	Answer      string `json:"answer"`
	SourcePages []int  `json:"source_pages"`
	ChunksUsed  int    `json:"chunks_used"`
}

type Service struct {
	generator     Generator
	maxChunks     int
	maxContextLen int
}

func NewService(g Generator, maxChunks, maxContextLen int) *Service {
	return &Service{generator: g, maxChunks: maxChunks, maxContextLen: maxContextLen}
}

// BuildContext formats candidates as "[Page N] text" blocks separated by
// blank lines, stopping before the total would exceed maxLen.
func BuildContext(candidates []retrieval.Candidate, maxLen int) string {
	var parts []string
	length := 0

	for _, c := range candidates {
		block := fmt.Sprintf("[Page %d] %s", c.Metadata.Page, c.Text)
		if length+len(block) > maxLen {
			break
		}
		parts = append(parts, block)
		length += len(block)
	}

	return strings.Join(parts, "\n\n")
}

// Answer generates a cited markdown answer from the top candidates.
func (s *Service) Answer(ctx context.Context, query string, candidates []retrieval.Candidate) (Result, error) {
	if len(candidates) > s.maxChunks {
		candidates = candidates[:s.maxChunks]
	}

	prompt := fmt.Sprintf(promptFmt, BuildContext(candidates, s.maxContextLen), query)

	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(text) == "" {
		return Result{Answer: noAnswerMessage}, nil
	}

	return Result{
		Answer:      text,
		SourcePages: sourcePages(candidates),
		ChunksUsed:  len(candidates),
	}, nil
}

func sourcePages(candidates []retrieval.Candidate) []int {
	seen := map[int]struct{}{}
	var pages []int
	for _, c := range candidates {
		p := c.Metadata.Page
		if p == 0 {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}
