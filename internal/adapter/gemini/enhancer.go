package gemini

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
)

const enhancePromptFmt = `Reproduce page %d of the attached document as markdown.
Format every table with pipe-delimited rows and a header row, and append a
one-line natural-language summary after each table. Preserve all other text
on the page as prose. Output only the page content.`

// TableEnhancer asks a vision-capable Gemini model to re-render a single
// page of a PDF as markdown with properly formatted tables. The document is
// uploaded once per path and reused for subsequent pages.
type TableEnhancer struct {
	client *genai.Client
	model  string

	mu           sync.Mutex
	uploadedPath string
	uploadedURI  string
}

func NewTableEnhancer(client *genai.Client, model string) *TableEnhancer {
	return &TableEnhancer{client: client, model: model}
}

func (t *TableEnhancer) EnhancePage(ctx context.Context, pdfPath string, pageNumber int) (string, error) {
	uri, err := t.fileURI(ctx, pdfPath)
	if err != nil {
		return "", err
	}

	m := t.client.GenerativeModel(t.model)
	m.SetTemperature(0.1)

	resp, err := m.GenerateContent(ctx,
		genai.FileData{URI: uri},
		genai.Text(fmt.Sprintf(enhancePromptFmt, pageNumber)),
	)
	if err != nil {
		return "", fmt.Errorf("table enhancement for page %d: %w", pageNumber, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("table enhancement for page %d: no content returned", pageNumber)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}

func (t *TableEnhancer) fileURI(ctx context.Context, pdfPath string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.uploadedPath == pdfPath && t.uploadedURI != "" {
		return t.uploadedURI, nil
	}

	content, err := os.ReadFile(pdfPath)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", pdfPath, err)
	}

	file, err := t.client.UploadFile(ctx, "", bytes.NewReader(content), &genai.UploadFileOptions{
		MIMEType: "application/pdf",
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", pdfPath, err)
	}

	t.uploadedPath = pdfPath
	t.uploadedURI = file.URI
	return file.URI, nil
}
