package generation

import (
	"encoding/base64"
	"strings"
	"unicode"

	"github.com/leavend/refgen/internal/domain"
	"golang.org/x/text/unicode/norm"
)

// Image is a decoded reference image.
type Image struct {
	Data     []byte
	MimeType string
}

var base64Encodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.RawStdEncoding,
	base64.URLEncoding,
	base64.RawURLEncoding,
}

// DecodeImage accepts raw base64 or a data URL
// ("data:image/png;base64,...."). Line breaks and the URL-safe alphabet are
// tolerated. A MIME type embedded in the data URL is used when mimeType is
// empty.
func DecodeImage(encoded, mimeType string) (Image, error) {
	payload := strings.TrimSpace(encoded)
	if rest, ok := strings.CutPrefix(payload, "data:"); ok {
		meta, data, found := strings.Cut(rest, ",")
		if !found {
			return Image{}, domain.Invalid("malformed data URL", nil)
		}
		if mimeType == "" {
			mimeType, _, _ = strings.Cut(meta, ";")
		}
		payload = data
	}
	payload = stripSpace(payload)
	if payload == "" {
		return Image{}, domain.MissingField("image")
	}

	raw, err := decodeBase64(payload)
	if err != nil {
		return Image{}, domain.Invalid("image data is not valid base64", err)
	}
	if len(raw) == 0 {
		return Image{}, domain.MissingField("image")
	}
	return Image{Data: raw, MimeType: mimeType}, nil
}

func decodeBase64(payload string) ([]byte, error) {
	var firstErr error
	for _, enc := range base64Encodings {
		raw, err := enc.DecodeString(payload)
		if err == nil {
			return raw, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// EncodeImage is the inverse of DecodeImage for plain base64.
func EncodeImage(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func normalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// normalizeID is applied to every promptId before it is stored or used in a
// filter, so composed and decomposed spellings resolve to the same records.
func normalizeID(id string) string {
	return normalizeText(id)
}
