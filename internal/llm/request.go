package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Image is an image attachment, base64 encoded.
type Image struct {
	MIMEType string
	Data     string
}

// DataURI returns the image as a data: URI.
func (i Image) DataURI() string {
	return "data:" + i.MIMEType + ";base64," + i.Data
}

// Flags are invocation markers carried alongside a request. They are not
// interpreted when building or parsing.
type Flags struct {
	Save    bool
	Verbose bool
	Debug   bool
}

// Request describes a single completion call.
type Request struct {
	Provider    Provider
	Model       string
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
	Images      []Image
	Flags       Flags
}

// Validate checks r against the supported ranges.
func (r Request) Validate() error {
	if !r.Provider.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, r.Provider)
	}
	if strings.TrimSpace(r.Model) == "" {
		return errors.New("model is required")
	}
	if strings.TrimSpace(r.Prompt) == "" {
		return errors.New("prompt is empty")
	}
	if r.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", r.MaxTokens)
	}
	if r.Temperature < 0 || r.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %g", r.Temperature)
	}
	if len(r.Images) > 0 && !r.Provider.SupportsImages() {
		return fmt.Errorf("%s does not accept image attachments", r.Provider)
	}
	return nil
}

// BuildRequest returns the JSON body for r in its provider's shape.
func BuildRequest(r Request) ([]byte, error) {
	d, err := r.Provider.dialect()
	if err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	r.System = CleanText(r.System)
	r.Prompt = CleanText(r.Prompt)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(d.body(r)); err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// CleanText removes control characters other than tab, newline and carriage
// return.
func CleanText(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}
