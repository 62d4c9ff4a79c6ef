package page

import (
	"bytes"
	"fmt"
	"html"
	"net/http"
	"strconv"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// UploadResultTitle is the title of the page answering an upload.
const UploadResultTitle = "Upload Result Page"

// Builder wraps body fragments in the page shell and encodes them.
type Builder struct {
	enc     encoding.Encoding
	charset string
}

// NewBuilder resolves charset (any WHATWG label, e.g. "utf-8", "latin1").
func NewBuilder(charset string) (*Builder, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("charset %q: %w", charset, err)
	}
	name, err := htmlindex.Name(enc)
	if err != nil {
		name = charset
	}
	return &Builder{enc: enc, charset: name}, nil
}

// Charset is the canonical name announced in Content-Type.
func (b *Builder) Charset() string { return b.charset }

// Build returns the response headers and the encoded page. title is plain
// text. Characters the charset cannot represent are substituted, so Build
// never fails.
func (b *Builder) Build(fragment []byte, title string) (http.Header, []byte) {
	var doc bytes.Buffer
	doc.WriteString(`<!DOCTYPE HTML PUBLIC "-//W3C//DTD HTML 4.01//EN" "http://www.w3.org/TR/html4/strict.dtd">` + "\n")
	doc.WriteString("<html>\n<head>\n")
	fmt.Fprintf(&doc, "<meta http-equiv=\"Content-Type\" content=\"text/html; charset=%s\">\n", b.charset)
	fmt.Fprintf(&doc, "<title>%s</title>\n", html.EscapeString(title))
	doc.WriteString("</head>\n<body>\n")
	doc.Write(fragment)
	doc.WriteString("</body>\n</html>\n")

	body := b.encode(doc.Bytes())
	h := http.Header{}
	h.Set("Content-Type", "text/html; charset="+b.charset)
	h.Set("Content-Length", strconv.Itoa(len(body)))
	return h, body
}

func (b *Builder) encode(doc []byte) []byte {
	out, _, err := transform.Bytes(encoding.ReplaceUnsupported(b.enc.NewEncoder()), doc)
	if err == nil {
		return out
	}
	// Last resort: at least drop ill-formed UTF-8.
	out, _, err = transform.Bytes(unicode.UTF8.NewEncoder(), doc)
	if err != nil {
		return doc
	}
	return out
}

// UploadResult is the body fragment answering an upload: the result label,
// the outcome message and a link back to where the upload came from.
func UploadResult(result, info, back string) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "<h2>%s</h2>\n", UploadResultTitle)
	b.WriteString("<hr>\n")
	fmt.Fprintf(&b, "<strong>%s:</strong>\n", html.EscapeString(result))
	fmt.Fprintf(&b, "%s\n", html.EscapeString(info))
	b.WriteString("<br>\n")
	fmt.Fprintf(&b, "<a href=\"%s\">back</a>\n", html.EscapeString(back))
	return b.Bytes()
}
