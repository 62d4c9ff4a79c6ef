package upload

import (
	"bytes"
	"strings"
)

const (
	dispositionHeader = "Content-Disposition"
	fileFieldMarker   = `name="file"; filename="`
)

// parseFilename extracts the filename of the "file" field from a part's
// Content-Disposition line:
//
//	Content-Disposition: form-data; name="file"; filename="<value>"
//
// The value runs to the last double quote on the line, so embedded quotes
// survive. Only a field named "file" is accepted.
func parseFilename(line []byte) (string, error) {
	s := string(trimEOL(line))
	i := strings.Index(s, dispositionHeader)
	if i < 0 {
		return "", errNoFilename
	}
	s = s[i+len(dispositionHeader):]
	j := strings.Index(s, fileFieldMarker)
	if j < 0 {
		return "", errNoFilename
	}
	s = s[j+len(fileFieldMarker):]
	k := strings.LastIndexByte(s, '"')
	if k <= 0 {
		// no closing quote, or filename="" (no file chosen in the form)
		return "", errNoFilename
	}
	return s[:k], nil
}

// trimEOL strips one trailing "\n" and, if present before it, one "\r".
func trimEOL(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte("\n"))
	return bytes.TrimSuffix(line, []byte("\r"))
}
