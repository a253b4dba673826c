package parser

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExtractPlainText(t *testing.T) {
	e := NewExtractor(NewWithModels(nil, nil))

	extraction, err := e.Extract(context.Background(), []byte("  bought 2 litres milk \n"), "text/plain", "", "list.txt")
	require.NoError(t, err)
	assert.Equal(t, "bought 2 litres milk", extraction.Text)
	assert.Equal(t, "bought 2 litres milk", extraction.Preview)
	assert.Equal(t, "plain-text", extraction.Metadata["extractor"])
}

func TestExtractPlainTextRejectsBinary(t *testing.T) {
	e := NewExtractor(NewWithModels(nil, nil))
	_, err := e.Extract(context.Background(), []byte{0xff, 0xfe, 0x00}, "text/plain", "", "blob.txt")
	require.Error(t, err)
}

func TestExtractPDFFallsBackToRawScan(t *testing.T) {
	e := NewExtractor(NewWithModels(nil, nil))

	// Not a real PDF; the raw scanner picks up the parenthesized runs.
	data := []byte("%PDF-1.4 BT (milk x2) Tj (eggs x12) Tj ET")
	extraction, err := e.Extract(context.Background(), data, "application/pdf", "", "receipt.pdf")
	require.NoError(t, err)
	assert.Equal(t, "milk x2 eggs x12", extraction.Text)
	assert.Equal(t, "raw-scan", extraction.Metadata["extractor"])
}

func TestExtractPDFWithNoText(t *testing.T) {
	e := NewExtractor(NewWithModels(nil, nil))
	_, err := e.Extract(context.Background(), []byte("%PDF-1.4 no runs here"), "application/pdf", "", "blank.pdf")
	require.Error(t, err)
}

func TestExtractSpreadsheet(t *testing.T) {
	workbook := excelize.NewFile()
	require.NoError(t, workbook.SetSheetRow("Sheet1", "A1", &[]any{"item", "quantity"}))
	require.NoError(t, workbook.SetSheetRow("Sheet1", "A2", &[]any{"milk", 2}))
	require.NoError(t, workbook.SetSheetRow("Sheet1", "A4", &[]any{"eggs", 12}))
	buf, err := workbook.WriteToBuffer()
	require.NoError(t, err)

	e := NewExtractor(NewWithModels(nil, nil))
	extraction, err := e.Extract(context.Background(), buf.Bytes(),
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "", "pantry.xlsx")
	require.NoError(t, err)

	assert.Equal(t, "item, quantity\nmilk, 2\neggs, 12", extraction.Text)
	assert.Equal(t, "spreadsheet", extraction.Metadata["extractor"])
	assert.Equal(t, "Sheet1", extraction.Metadata["sheetName"])
	assert.Equal(t, 3, extraction.Metadata["rowCount"])
	assert.Equal(t, 2, extraction.Metadata["columnCount"])
}

func TestExtractImageWithoutModel(t *testing.T) {
	e := NewExtractor(NewWithModels(nil, nil))
	_, err := e.Extract(context.Background(), []byte{0x89, 0x50}, "image/png", "receipt", "receipt.png")
	assert.ErrorIs(t, err, ErrLLMNotConfigured)
}

func TestExtractImageRendersNarrative(t *testing.T) {
	model := &fakeLLM{response: `[{"name": "milk", "quantity": 2, "action": "add", "confidence": 0.9}]`}
	e := NewExtractor(NewWithModels(nil, model))

	extraction, err := e.Extract(context.Background(), []byte{0x89, 0x50, 0x4e, 0x47}, "image/png", "receipt", "receipt.png")
	require.NoError(t, err)
	assert.Equal(t, "bought 2 milk", extraction.Text)
	assert.Equal(t, "vision", extraction.Metadata["extractor"])
	assert.Equal(t, "receipt", extraction.Metadata["imageType"])
	assert.Equal(t, 1, extraction.Metadata["itemCount"])
}

func TestExtractUnsupported(t *testing.T) {
	e := NewExtractor(NewWithModels(nil, nil))
	_, err := e.Extract(context.Background(), []byte("zip"), "application/zip", "archive", "stuff.zip")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"application/zip"`)
	assert.Contains(t, err.Error(), `"archive"`)
}

func TestPreviewTruncates(t *testing.T) {
	long := strings.Repeat("milk ", 100)
	preview := Preview(long)
	assert.Equal(t, PreviewLimit, len([]rune(preview)))
	assert.True(t, strings.HasSuffix(preview, "…"))

	assert.Equal(t, "short text", Preview("short\n text"))
}
