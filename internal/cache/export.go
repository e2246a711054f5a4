package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// ExportFormat selects the document encoding for Export.
type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
	FormatYAML ExportFormat = "yaml"
)

// ParseExportFormat accepts json, yaml or yml.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// Document is the exported cache layout.
type Document struct {
	Books []BookRecord `json:"books" yaml:"books"`
}

// Export writes every cached row to w.
func (c *BookCache) Export(ctx context.Context, w io.Writer, format ExportFormat) error {
	recs, err := c.Records(ctx)
	if err != nil {
		return err
	}
	for i := range recs {
		recs[i].UpdatedAt = recs[i].UpdatedAt.UTC()
	}
	doc := Document{Books: recs}
	if doc.Books == nil {
		doc.Books = []BookRecord{}
	}

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}
