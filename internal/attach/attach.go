// Package attach reads prompt attachments and prepares them for a provider request.
package attach

import (
	"bytes"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"go-ask/internal/apperr"
)

// Size limits applied while loading attachments. Files over a limit are
// skipped with a warning rather than failing the invocation.
const (
	MaxFileSize  int64 = 20 << 20
	MaxTotalSize int64 = 40 << 20
)

// Kind classifies an attachment's content.
type Kind int

const (
	KindUnsupported Kind = iota
	KindText
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindImage:
		return "image"
	default:
		return "unsupported"
	}
}

var imageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

// Attachment is a file read from disk.
type Attachment struct {
	Path     string
	Name     string
	Data     []byte
	Kind     Kind
	MIMEType string
}

// Base64 returns the attachment's content as base64 text.
func (a *Attachment) Base64() string {
	return Encode(a.Data)
}

// Set holds the attachments of one invocation, split by kind.
type Set struct {
	Text    []*Attachment
	Images  []*Attachment
	Skipped []string
}

// Read loads a single file and classifies it.
func Read(path string) (*Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.Wrap(err, apperr.KindInput, "file not found: "+path)
		}
		return nil, apperr.Wrap(err, apperr.KindInput, "file not readable: "+path)
	}
	if info.IsDir() {
		return nil, apperr.Newf(apperr.KindInput, "%s is a directory, not a file", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindInput, "file not readable: "+path)
	}

	kind, mimeType := Classify(path, data)
	return &Attachment{
		Path:     path,
		Name:     filepath.Base(path),
		Data:     data,
		Kind:     kind,
		MIMEType: mimeType,
	}, nil
}

// Load reads every path. Missing or unreadable files fail the load; oversized
// and unsupported files are skipped with a warning, as are images when images
// is false. Only attachments that are kept count toward MaxTotalSize.
func Load(paths []string, images bool) (*Set, error) {
	set := &Set{}
	var total int64

	for _, path := range paths {
		info, err := os.Stat(path)
		if err == nil && !info.IsDir() {
			if info.Size() > MaxFileSize {
				logrus.Warnf("Skipping %s: %d bytes exceeds the %d byte per-file limit", path, info.Size(), MaxFileSize)
				set.Skipped = append(set.Skipped, path)
				continue
			}
			if total+info.Size() > MaxTotalSize {
				logrus.Warnf("Skipping %s: attachments would exceed the %d byte total limit", path, MaxTotalSize)
				set.Skipped = append(set.Skipped, path)
				continue
			}
		}

		a, err := Read(path)
		if err != nil {
			return nil, err
		}

		switch {
		case a.Kind == KindText:
			set.Text = append(set.Text, a)
		case a.Kind == KindImage && images:
			set.Images = append(set.Images, a)
		case a.Kind == KindImage:
			logrus.Warnf("Skipping %s: the provider does not accept images", path)
			set.Skipped = append(set.Skipped, path)
			continue
		default:
			logrus.Warnf("Skipping %s: unsupported content type %s", path, a.MIMEType)
			set.Skipped = append(set.Skipped, path)
			continue
		}
		total += int64(len(a.Data))
		logrus.Debugf("Attachment %s loaded as %s (%d bytes)", a.Name, a.Kind, len(a.Data))
	}

	return set, nil
}

// Classify sniffs data and returns its kind and MIME type.
func Classify(path string, data []byte) (Kind, string) {
	detected := http.DetectContentType(data)
	mediaType, _, err := mime.ParseMediaType(detected)
	if err != nil {
		mediaType = detected
	}

	if imageTypes[mediaType] {
		return KindImage, mediaType
	}
	if strings.HasPrefix(mediaType, "text/") {
		return KindText, mediaType
	}
	if utf8.Valid(data) && !bytes.ContainsRune(data, 0) {
		if byExt := mime.TypeByExtension(filepath.Ext(path)); byExt != "" {
			if mt, _, err := mime.ParseMediaType(byExt); err == nil {
				return KindText, mt
			}
		}
		return KindText, "text/plain"
	}
	return KindUnsupported, mediaType
}

// InlineText appends each text attachment to prompt between file markers.
func InlineText(prompt string, files []*Attachment) string {
	if len(files) == 0 {
		return prompt
	}

	var sb strings.Builder
	sb.WriteString(prompt)
	for _, f := range files {
		fmt.Fprintf(&sb, "\n\n--- File: %s ---\n", f.Name)
		sb.Write(bytes.TrimRight(f.Data, "\n"))
		sb.WriteString("\n--- End of file ---")
	}
	return sb.String()
}
