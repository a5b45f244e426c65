package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

var ErrExtraction = errors.New("pdf extraction failed")

type SourceType string

const SourceTypePage SourceType = "page"

// Page is the text of one physical PDF page. Pages are emitted for every
// physical page, blank ones included, so page numbering always lines up
// with the printed document.
type Page struct {
	Number     int
	Text       string
	SourceType SourceType
}

// TableEnhancer re-renders a single page through a vision-capable model and
// returns it as markdown with pipe-delimited tables. Implementations live in
// the adapter layer; enhancement is best-effort and callers keep the raw
// text on any failure.
type TableEnhancer interface {
	EnhancePage(ctx context.Context, pdfPath string, pageNumber int) (string, error)
}

type Extractor struct {
	enhancer   TableEnhancer
	tableCheck func(string) bool
}

// New returns an extractor. enhancer may be nil, which disables the table
// enhancement path entirely.
func New(enhancer TableEnhancer) *Extractor {
	return &Extractor{
		enhancer:   enhancer,
		tableCheck: LooksLikeTable,
	}
}

// WithTablePredicate swaps the heuristic used to decide whether a page is
// worth re-rendering for tables.
func (e *Extractor) WithTablePredicate(pred func(string) bool) *Extractor {
	e.tableCheck = pred
	return e
}

// Extract returns one Page per physical page, 1-indexed, in document order.
func (e *Extractor) Extract(ctx context.Context, pdfPath string) ([]Page, error) {
	f, r, err := pdf.Open(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrExtraction, pdfPath, err)
	}
	defer f.Close()

	total := r.NumPage()
	pages := make([]Page, 0, total)

	for num := 1; num <= total; num++ {
		text := ""
		p := r.Page(num)
		if !p.V.IsNull() {
			raw, err := p.GetPlainText(nil)
			if err != nil {
				// A single unreadable page keeps its slot so numbering
				// stays aligned with the physical document.
				slog.WarnContext(ctx, "failed to extract page text", "page", num, "error", err)
			} else {
				text = cleanText(raw)
			}
		}

		if strings.TrimSpace(text) == "" {
			text = " "
		} else if e.enhancer != nil && e.tableCheck(text) {
			enhanced, err := e.enhancer.EnhancePage(ctx, pdfPath, num)
			if err != nil {
				slog.WarnContext(ctx, "table enhancement failed, keeping raw text", "page", num, "error", err)
			} else if strings.TrimSpace(enhanced) != "" {
				text = enhanced
			}
		}

		pages = append(pages, Page{Number: num, Text: text, SourceType: SourceTypePage})
	}

	return pages, nil
}

// Matches headings like "Table 3.1.2" in prose, bold ("**Table 3.1.2**"),
// or inside a markdown table row.
var tableHeadingRe = regexp.MustCompile(`\bTable\s+\d+\.\d+\.\d+\b`)

func LooksLikeTable(text string) bool {
	return tableHeadingRe.MatchString(text)
}

var (
	hspaceRe   = regexp.MustCompile(`[ \t]+`)
	paraSepRe  = regexp.MustCompile(`\n\s*\n+`)
	lineEdgeRe = regexp.MustCompile(`(?m)^[ \t]+|[ \t]+$`)
)

// cleanText collapses runs of whitespace while keeping blank lines as
// paragraph boundaries, which the chunker relies on as its coarsest split.
func cleanText(text string) string {
	text = hspaceRe.ReplaceAllString(text, " ")
	text = lineEdgeRe.ReplaceAllString(text, "")
	text = paraSepRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
