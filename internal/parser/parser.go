package parser

import (
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/conorfennell/nbflash/internal/domain"
)

const (
	markdownCell = "markdown"
	codeCell     = "code"

	displayData = "display_data"

	mimeHTML  = "text/html"
	mimePlain = "text/plain"
)

var (
	cellsPath   = jp.MustParseString("$.cells[*]")
	outputsPath = jp.MustParseString("$.outputs[*]")
)

// Parse reads a notebook from an io.Reader and extracts its content.
func Parse(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return ParseBytes(data)
}

// ParseBytes returns one content string per qualifying cell, in document
// order. Markdown cells yield their source; code cells yield each
// display_data output, preferring HTML over escaped plain text.
func ParseBytes(data []byte) ([]string, error) {
	root, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid notebook json: %w", err)
	}

	var contents []string
	for i, c := range cellsPath.Get(root) {
		cell, ok := c.(map[string]any)
		if !ok {
			continue
		}

		switch cell["cell_type"] {
		case markdownCell:
			source := joinText(cell["source"])
			if strings.TrimSpace(source) == "" {
				continue
			}
			contents = append(contents, source)
		case codeCell:
			for _, o := range outputsPath.Get(cell) {
				output, ok := o.(map[string]any)
				if !ok || output["output_type"] != displayData {
					continue
				}
				content, err := renderOutput(output)
				if err != nil {
					return contents, fmt.Errorf("cell %d: %w", i, err)
				}
				contents = append(contents, content)
			}
		}
	}
	return contents, nil
}

func renderOutput(output map[string]any) (string, error) {
	data, _ := output["data"].(map[string]any)
	if v, ok := data[mimeHTML]; ok {
		return joinText(v), nil
	}
	if v, ok := data[mimePlain]; ok {
		return "<pre>" + html.EscapeString(joinText(v)) + "</pre>", nil
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	return "", fmt.Errorf("%w: got %v", domain.ErrMalformedOutput, keys)
}

// joinText concatenates nbformat multiline strings, which are either a
// single string or a list of lines.
func joinText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		var b strings.Builder
		for _, line := range t {
			if s, ok := line.(string); ok {
				b.WriteString(s)
			}
		}
		return b.String()
	}
	return ""
}
