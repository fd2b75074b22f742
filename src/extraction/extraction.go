package extraction

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// UnsupportedTypeError is returned when the filename has no extension or an
// extension no extractor is registered for.
type UnsupportedTypeError struct {
	Ext string
}

func (e *UnsupportedTypeError) Error() string {
	if e.Ext == "" {
		return "filename must contain an extension"
	}
	return fmt.Sprintf("unsupported file extension: %s", e.Ext)
}

// ExtractError is returned when a recognized file type fails to parse, e.g. a
// corrupt archive or a malformed PDF body.
type ExtractError struct {
	Ext string
	Err error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("failed to extract %s content: %v", e.Ext, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

type extractorFunc func(data []byte) (string, error)

var extractors = map[string]extractorFunc{
	"txt":  extractTxt,
	"docx": extractDocx,
	"pdf":  extractPDF,
	"csv":  extractCSV,
}

// Extract returns whitespace-normalized text for supported file extensions.
// Extraction is a pure function over the byte content; it performs no network
// or database access.
func Extract(fileBytes []byte, filename string) (string, error) {
	idx := strings.LastIndex(filename, ".")
	if filename == "" || idx < 0 {
		return "", &UnsupportedTypeError{}
	}
	ext := strings.ToLower(filename[idx+1:])
	extractor, ok := extractors[ext]
	if !ok {
		return "", &UnsupportedTypeError{Ext: ext}
	}
	raw, err := extractor(fileBytes)
	if err != nil {
		return "", &ExtractError{Ext: ext, Err: err}
	}
	return NormalizeText(raw), nil
}

// NormalizeText collapses runs of whitespace so downstream word counting and
// prompt building see consistent input.
func NormalizeText(text string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

// WordCount returns the approximate word count for the provided text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

func extractTxt(data []byte) (string, error) {
	return strings.ToValidUTF8(string(data), ""), nil
}

func extractPDF(data []byte) (text string, err error) {
	// The pdf package panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	content, err := io.ReadAll(plain)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// extractCSV concatenates cell text across all rows and columns in row-major
// order, one cell per line.
func extractCSV(data []byte) (string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return "", err
	}

	var cells []string
	for _, row := range rows {
		for _, value := range row {
			value = strings.TrimSpace(value)
			if value != "" {
				cells = append(cells, value)
			}
		}
	}
	return strings.Join(cells, "\n"), nil
}
