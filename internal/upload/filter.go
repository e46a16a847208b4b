package upload

import (
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// allowedTypes is the image allow-list, in the order shown to clients.
var allowedTypes = []string{"image/jpeg", "image/png", "image/jpg"}

// Filter accepts a client-declared media type iff it is one of the allowed
// image types. Parameters are ignored and the comparison is case-insensitive.
// It returns the normalized media type on success.
func Filter(declared string) (string, error) {
	mediaType, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return "", ErrUnsupportedMediaType
	}
	for _, t := range allowedTypes {
		if mediaType == t {
			return mediaType, nil
		}
	}
	return "", ErrUnsupportedMediaType
}

// VerifyContent checks the leading bytes of data against the declared type.
// image/jpg is treated as an alias of image/jpeg.
func VerifyContent(declared string, data []byte) error {
	want := declared
	if want == "image/jpg" {
		want = "image/jpeg"
	}
	if !mimetype.Detect(data).Is(want) {
		return ErrUnsupportedMediaType
	}
	return nil
}

func allowedList() string {
	switch len(allowedTypes) {
	case 0:
		return ""
	case 1:
		return allowedTypes[0]
	}
	return strings.Join(allowedTypes[:len(allowedTypes)-1], ", ") + ", or " + allowedTypes[len(allowedTypes)-1]
}
