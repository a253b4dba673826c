package parser

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/xuri/excelize/v2"
)

// PreviewLimit caps the stored text preview, in runes.
const PreviewLimit = 240

// Extraction is the plain-text narrative pulled out of an uploaded artifact,
// ready for the grocery parser.
type Extraction struct {
	Text     string
	Preview  string
	Metadata map[string]any
}

// Extractor dispatches an uploaded artifact to the right decoder by content
// type, source-type hint, and filename extension.
type Extractor struct {
	parser *Parser
	logger *slog.Logger
}

func NewExtractor(p *Parser) *Extractor {
	return &Extractor{parser: p, logger: slog.Default()}
}

// Extract produces a text narrative from the artifact bytes, or an error
// naming why the artifact is unreadable.
func (e *Extractor) Extract(ctx context.Context, data []byte, contentType, sourceType, filename string) (*Extraction, error) {
	switch {
	case isTextLike(contentType):
		return extractPlainText(data)
	case isPDF(contentType, filename):
		return e.extractPDF(data)
	case isImage(contentType, sourceType):
		return e.extractImage(ctx, data, sourceType)
	case isSpreadsheet(contentType, filename):
		return extractSpreadsheet(data)
	default:
		return nil, fmt.Errorf("unsupported upload: content type %q with source type %q", contentType, sourceType)
	}
}

func isTextLike(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, "text/") ||
		strings.HasPrefix(ct, "application/json") ||
		strings.HasPrefix(ct, "application/csv")
}

func isPDF(contentType, filename string) bool {
	return strings.Contains(strings.ToLower(contentType), "pdf") ||
		strings.EqualFold(filepath.Ext(filename), ".pdf")
}

func isImage(contentType, sourceType string) bool {
	switch sourceType {
	case "receipt", "list", "photo":
		return true
	}
	return strings.HasPrefix(strings.ToLower(contentType), "image/")
}

func isSpreadsheet(contentType, filename string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "spreadsheet") || strings.Contains(ct, "ms-excel") ||
		strings.EqualFold(filepath.Ext(filename), ".xlsx")
}

func extractPlainText(data []byte) (*Extraction, error) {
	if !utf8.Valid(data) {
		return nil, errors.New("text artifact is not valid UTF-8")
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, errors.New("text artifact contained no readable text")
	}
	return &Extraction{
		Text:     text,
		Preview:  Preview(text),
		Metadata: map[string]any{"extractor": "plain-text"},
	}, nil
}

// extractPDF first asks pdfcpu for the decoded page content streams; when
// that fails it scans the raw bytes for parenthesized text runs, which is
// enough for simple generated receipts.
func (e *Extractor) extractPDF(data []byte) (*Extraction, error) {
	text, err := pdfContentText(data)
	extractor := "pdfcpu"
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			e.logger.Warn("Structured PDF extraction failed, scanning raw bytes.", "error", err)
		}
		text = parenthesizedRuns(data)
		extractor = "raw-scan"
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("could not extract any text from PDF")
	}
	return &Extraction{
		Text:     text,
		Preview:  Preview(text),
		Metadata: map[string]any{"extractor": extractor},
	}, nil
}

func pdfContentText(data []byte) (string, error) {
	tempDir, err := os.MkdirTemp("", "upload-extract-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	sourcePath := filepath.Join(tempDir, "source.pdf")
	if err := os.WriteFile(sourcePath, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to stage PDF: %w", err)
	}

	outDir := filepath.Join(tempDir, "content")
	if err := os.MkdirAll(outDir, 0o700); err != nil {
		return "", err
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.ExtractContentFile(sourcePath, outDir, nil, conf); err != nil {
		return "", fmt.Errorf("pdfcpu content extraction failed: %w", err)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return "", err
	}
	var builder strings.Builder
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(outDir, entry.Name()))
		if err != nil {
			return "", err
		}
		if runs := parenthesizedRuns(content); runs != "" {
			builder.WriteString(runs)
			builder.WriteString("\n")
		}
	}
	return builder.String(), nil
}

// parenthesizedRuns pulls (...) string operands out of a PDF byte stream and
// keeps the runs that carry alphanumeric content.
func parenthesizedRuns(data []byte) string {
	var runs []string
	var current bytes.Buffer
	depth := 0
	escaped := false
	for _, b := range data {
		if depth == 0 {
			if b == '(' {
				depth = 1
				current.Reset()
			}
			continue
		}
		if escaped {
			current.WriteByte(b)
			escaped = false
			continue
		}
		switch b {
		case '\\':
			escaped = true
		case '(':
			depth++
			current.WriteByte(b)
		case ')':
			depth--
			if depth == 0 {
				if run := current.String(); hasAlphanumeric(run) {
					runs = append(runs, strings.TrimSpace(run))
				}
			} else {
				current.WriteByte(b)
			}
		default:
			current.WriteByte(b)
		}
	}
	return strings.Join(runs, " ")
}

func hasAlphanumeric(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// extractImage runs vision parsing and renders the structured items back
// into narrative text so the rest of the pipeline stays format-agnostic.
func (e *Extractor) extractImage(ctx context.Context, data []byte, sourceType string) (*Extraction, error) {
	if e.parser == nil || e.parser.visionModel == nil {
		return nil, ErrLLMNotConfigured
	}
	imageType := "list"
	if sourceType == "receipt" {
		imageType = "receipt"
	}

	result, err := e.parser.ParseImage(ctx, base64.StdEncoding.EncodeToString(data), imageType)
	if err != nil {
		return nil, err
	}
	if len(result.Items) == 0 {
		return nil, errors.New("no grocery items recognized in image")
	}

	narrative := NarrativeFromItems(result.Items)
	if strings.TrimSpace(narrative) == "" {
		return nil, errors.New("image parsing produced an empty narrative")
	}
	return &Extraction{
		Text:    narrative,
		Preview: Preview(narrative),
		Metadata: map[string]any{
			"extractor":  "vision",
			"imageType":  imageType,
			"itemCount":  len(result.Items),
			"confidence": result.Confidence,
		},
	}, nil
}

// extractSpreadsheet reads the first sheet and renders every non-blank row
// as one comma-joined line.
func extractSpreadsheet(data []byte) (*Extraction, error) {
	workbook, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer workbook.Close()

	sheets := workbook.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("spreadsheet has no sheets")
	}
	sheet := sheets[0]
	rows, err := workbook.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}

	var lines []string
	maxColumns := 0
	for _, row := range rows {
		var cells []string
		for _, cell := range row {
			if trimmed := strings.TrimSpace(cell); trimmed != "" {
				cells = append(cells, trimmed)
			}
		}
		if len(cells) == 0 {
			continue
		}
		if len(cells) > maxColumns {
			maxColumns = len(cells)
		}
		lines = append(lines, strings.Join(cells, ", "))
	}
	if len(lines) == 0 {
		return nil, errors.New("spreadsheet contained no readable cells")
	}

	text := strings.Join(lines, "\n")
	return &Extraction{
		Text:    text,
		Preview: Preview(text),
		Metadata: map[string]any{
			"extractor":   "spreadsheet",
			"sheetName":   sheet,
			"sheetCount":  len(sheets),
			"rowCount":    len(lines),
			"columnCount": maxColumns,
		},
	}, nil
}

// Preview collapses whitespace and truncates to PreviewLimit runes with an
// ellipsis.
func Preview(text string) string {
	collapsed := strings.Join(strings.Fields(text), " ")
	runes := []rune(collapsed)
	if len(runes) <= PreviewLimit {
		return collapsed
	}
	return string(runes[:PreviewLimit-1]) + "…"
}
