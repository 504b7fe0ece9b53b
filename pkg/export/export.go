package export

import "fmt"

// Format names a supported export encoding.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// Dataset defines tabular export content. Rows are keyed by header.
type Dataset struct {
	Title   string
	Headers []string
	Rows    []map[string]string
}

// Document is a rendered export ready to be streamed.
type Document struct {
	Filename    string
	ContentType string
	Body        []byte
}

// Renderer encodes a dataset into a document body.
type Renderer interface {
	Render(data Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// ParseFormat validates a user supplied format, defaulting to CSV.
func ParseFormat(raw string) (Format, error) {
	switch Format(raw) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

// RendererFor returns the renderer for a format.
func RendererFor(format Format) Renderer {
	if format == FormatPDF {
		return NewPDFExporter()
	}
	return NewCSVExporter()
}

// Build renders the dataset and names the file after base.
func Build(format Format, base string, data Dataset) (*Document, error) {
	renderer := RendererFor(format)
	body, err := renderer.Render(data)
	if err != nil {
		return nil, err
	}
	return &Document{
		Filename:    fmt.Sprintf("%s.%s", base, renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}
