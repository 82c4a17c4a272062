package frame

import (
	"encoding/base64"
	"strings"
)

// MIMEJPEG is the content type of sampled frames.
const MIMEJPEG = "image/jpeg"

// Image is an encoded still ready for transport.
type Image struct {
	Data   []byte
	Width  int
	Height int
	MIME   string
}

// Empty reports whether the image carries no bytes.
func (i Image) Empty() bool {
	return len(i.Data) == 0
}

// Payload returns the base64 body sent as image_base64.
func (i Image) Payload() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// DataURI renders the image as a data URI suitable for previews.
func DataURI(img Image) string {
	mime := img.MIME
	if mime == "" {
		mime = MIMEJPEG
	}
	return "data:" + mime + ";base64," + img.Payload()
}

// StripDataURIHeader removes a leading "data:<mime>;base64," header when present.
func StripDataURIHeader(value string) string {
	if !strings.HasPrefix(value, "data:") {
		return value
	}
	if idx := strings.IndexByte(value, ','); idx >= 0 {
		return value[idx+1:]
	}
	return value
}
