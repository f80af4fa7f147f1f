package tools

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

// ============================================================================
// READ FILE - DOCUMENT CONTENT EXTRACTION
// ============================================================================

// ReadFileTool extracts text content from a document on disk, the
// externally-registered "read-file" tool the Attachment Processing pipeline
// dispatches non-image attachments to.
type ReadFileTool struct{}

// NewReadFileTool creates the read-file tool.
func NewReadFileTool() *ReadFileTool {
	return &ReadFileTool{}
}

func (t *ReadFileTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        "read-file",
		Description: "Extract text content from a document file (PDF, XLSX) at a local path.",
		Parameters: []ToolParameter{
			{Name: "file_url", Type: "string", Description: "Local path to the file", Required: true},
			{Name: "mime_type", Type: "string", Description: "Declared MIME type of the file", Required: true},
		},
		ServerURL: "local",
	}
}

func (t *ReadFileTool) GetName() string        { return "read-file" }
func (t *ReadFileTool) GetDescription() string { return t.GetInfo().Description }

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	start := time.Now()

	fileURL, _ := args["file_url"].(string)
	if fileURL == "" {
		return t.errorResult("file_url parameter is required", start), fmt.Errorf("file_url parameter is required")
	}
	mimeType, _ := args["mime_type"].(string)

	var content string
	var err error
	switch {
	case mimeType == "application/pdf":
		content, err = extractPDFText(ctx, fileURL)
	case mimeType == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		content, err = extractSpreadsheetText(ctx, fileURL)
	case strings.HasPrefix(mimeType, "text/"):
		var raw []byte
		raw, err = os.ReadFile(fileURL)
		content = string(raw)
	default:
		return t.errorResult(fmt.Sprintf("unsupported mime type for content extraction: %q", mimeType), start),
			fmt.Errorf("unsupported mime type: %s", mimeType)
	}
	if err != nil {
		return t.errorResult(err.Error(), start), err
	}

	return ToolResult{
		Success:       true,
		Content:       content,
		ToolName:      "read-file",
		ExecutionTime: time.Since(start),
		Metadata:      map[string]interface{}{"file_url": fileURL, "mime_type": mimeType},
	}, nil
}

func (t *ReadFileTool) errorResult(msg string, start time.Time) ToolResult {
	return ToolResult{Success: false, Error: msg, ToolName: "read-file", ExecutionTime: time.Since(start)}
}

// extractPDFText concatenates the plain text of every page, recording a
// per-page failure marker rather than aborting the whole document.
func extractPDFText(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat PDF: %w", err)
	}

	reader, err := pdf.NewReader(file, info.Size())
	if err != nil {
		return "", fmt.Errorf("failed to parse PDF: %w", err)
	}

	var parts []string
	totalPages := reader.NumPage()
	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		select {
		case <-ctx.Done():
			return strings.Join(parts, "\n\n"), ctx.Err()
		default:
		}

		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			parts = append(parts, fmt.Sprintf("--- Page %d (extraction failed: %v) ---", pageNum, err))
			continue
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, fmt.Sprintf("--- Page %d ---\n%s", pageNum, text))
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// extractSpreadsheetText renders every sheet's rows as tab-separated lines.
func extractSpreadsheetText(ctx context.Context, path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer f.Close()

	var parts []string
	for _, sheet := range f.GetSheetList() {
		select {
		case <-ctx.Done():
			return strings.Join(parts, "\n\n"), ctx.Err()
		default:
		}

		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		var lines []string
		for _, row := range rows {
			lines = append(lines, strings.Join(row, "\t"))
		}
		parts = append(parts, fmt.Sprintf("--- %s ---\n%s", sheet, strings.Join(lines, "\n")))
	}
	return strings.Join(parts, "\n\n"), nil
}
