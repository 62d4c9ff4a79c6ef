package upload

import "strings"

// ExtractBoundary returns everything after the first "=" of a Content-Type
// value such as "multipart/form-data; boundary=----x". No quoting or
// parameter parsing is done; a header with other parameters before the
// boundary yields the wrong token.
func ExtractBoundary(contentType string) ([]byte, error) {
	_, after, ok := strings.Cut(contentType, "=")
	if !ok || after == "" {
		return nil, errNoBoundary
	}
	return []byte(after), nil
}
