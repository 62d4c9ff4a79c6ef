package listing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"net/url"
	"path/filepath"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"dirdrop/internal/fsutil"
)

// ErrNotReadable is returned when a directory cannot be enumerated.
var ErrNotReadable = errors.New("no permission to list directory")

var tracer = otel.Tracer("dirdrop/internal/listing")

// Entry is one directory entry as seen at render time.
type Entry struct {
	Name      string
	IsDir     bool // target is a directory (symlinks followed)
	IsSymlink bool
}

// Href is the percent-encoded link target. Directories, including symlinks
// to directories, get a trailing slash.
func (e Entry) Href() string {
	h := urlPathEscape(e.Name)
	if e.IsDir {
		h += "/"
	}
	return h
}

// Label is the unescaped display text: "name/" for directories, "name@"
// for symlinks. The symlink marker wins.
func (e Entry) Label() string {
	switch {
	case e.IsSymlink:
		return e.Name + "@"
	case e.IsDir:
		return e.Name + "/"
	default:
		return e.Name
	}
}

// ReadEntries snapshots dir, sorted case-insensitively by name. Names that
// differ only in case keep byte order.
func ReadEntries(fsys fsutil.FS, dir string) ([]Entry, error) {
	ents, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotReadable, err)
	}
	out := make([]Entry, 0, len(ents))
	for _, de := range ents {
		name := de.Name()
		full := filepath.Join(dir, name)
		e := Entry{Name: name}
		if st, err := fsys.Stat(full); err == nil {
			e.IsDir = st.IsDir()
		}
		if st, err := fsys.Lstat(full); err == nil {
			e.IsSymlink = st.Mode()&fs.ModeSymlink != 0
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if a != b {
			return a < b
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Page is a rendered listing: the body fragment and the unescaped title.
type Page struct {
	Title string
	Body  []byte
}

// Title returns the listing title for a request path.
func Title(requestPath string) string {
	return "Directory listing for " + requestPath
}

// Render lists dir, shown to the client as requestPath (the decoded URL
// path). The fragment carries an upload form posting back to the same URL,
// then a ".." link followed by every entry.
func Render(ctx context.Context, fsys fsutil.FS, dir, requestPath string) (Page, error) {
	_, span := tracer.Start(ctx, "listing.Render")
	defer span.End()

	entries, err := ReadEntries(fsys, dir)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "not readable")
		return Page{}, err
	}
	span.SetAttributes(attribute.Int("listing.entries", len(entries)))

	title := Title(requestPath)
	var b bytes.Buffer
	fmt.Fprintf(&b, "<h1>%s</h1>\n", html.EscapeString(title))
	b.WriteString("<hr>\n")
	b.WriteString(`<form enctype="multipart/form-data" method="post">` + "\n")
	b.WriteString(`  <input name="file" type="file"/>` + "\n")
	b.WriteString(`  <input type="submit" value="Upload"/>` + "\n")
	b.WriteString("</form>\n")
	b.WriteString("<hr>\n")
	b.WriteString("<ul>\n")
	writeItem(&b, "..", "..")
	for _, e := range entries {
		writeItem(&b, e.Href(), e.Label())
	}
	b.WriteString("</ul>\n")
	b.WriteString("<hr>\n")
	return Page{Title: title, Body: b.Bytes()}, nil
}

// writeItem emits one list item. href is already percent-encoded; both
// values are HTML-escaped for their own context.
func writeItem(b *bytes.Buffer, href, label string) {
	fmt.Fprintf(b, "  <li><a href=\"%s\">%s</a></li>\n", html.EscapeString(href), html.EscapeString(label))
}

// urlPathEscape percent-encodes everything outside the unreserved set, so a
// name like "a:b" cannot be read as a URL scheme.
func urlPathEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
