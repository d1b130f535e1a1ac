package inference

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DecodeDataURL returns the bytes of the encoded image inside a
// "<mime-prefix>,<base64-payload>" string. The prefix is not inspected.
func DecodeDataURL(frame string) ([]byte, error) {
	if frame == "" {
		return nil, fmt.Errorf("%w: frame is missing", ErrInvalidFrame)
	}

	_, payload, found := strings.Cut(frame, ",")
	if !found {
		return nil, fmt.Errorf("%w: frame is not a data URL", ErrInvalidFrame)
	}

	payload = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, payload)

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFrame, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: frame payload is empty", ErrInvalidFrame)
	}

	return data, nil
}
