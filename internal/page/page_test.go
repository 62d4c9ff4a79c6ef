package page

import (
	"bytes"
	"strconv"
	"strings"
	"testing"
)

func TestNewBuilder(t *testing.T) {
	tests := []struct {
		label    string
		expected string
		wantErr  bool
	}{
		{"utf-8", "utf-8", false},
		{"UTF8", "utf-8", false},
		{"windows-1252", "windows-1252", false},
		{"latin1", "windows-1252", false},
		{"no-such-charset", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.label, func(t *testing.T) {
			b, err := NewBuilder(tc.label)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if b.Charset() != tc.expected {
				t.Errorf("Charset() = %q, want %q", b.Charset(), tc.expected)
			}
		})
	}
}

func TestBuildHeaders(t *testing.T) {
	b, err := NewBuilder("utf-8")
	if err != nil {
		t.Fatal(err)
	}
	h, body := b.Build([]byte("<p>héllo</p>\n"), "Title & more")

	if ct := h.Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cl := h.Get("Content-Length"); cl != strconv.Itoa(len(body)) {
		t.Errorf("Content-Length = %q, body is %d bytes", cl, len(body))
	}
	s := string(body)
	if !strings.HasPrefix(s, "<!DOCTYPE HTML") {
		t.Errorf("missing doctype:\n%s", s)
	}
	if !strings.Contains(s, `content="text/html; charset=utf-8"`) {
		t.Errorf("missing meta charset:\n%s", s)
	}
	if !strings.Contains(s, "<title>Title &amp; more</title>") {
		t.Errorf("title not escaped:\n%s", s)
	}
	if !strings.Contains(s, "<body>\n<p>héllo</p>\n</body>") {
		t.Errorf("fragment not embedded verbatim:\n%s", s)
	}
}

func TestBuildSubstitutesInvalidUTF8(t *testing.T) {
	b, _ := NewBuilder("utf-8")
	h, body := b.Build([]byte("name-\xff\xfe.txt"), "t")

	if !bytes.Contains(body, []byte("name-�")) {
		t.Errorf("invalid bytes not substituted: %q", body)
	}
	if bytes.Contains(body, []byte{0xff}) {
		t.Errorf("raw invalid byte leaked: %q", body)
	}
	if h.Get("Content-Length") != strconv.Itoa(len(body)) {
		t.Errorf("Content-Length mismatch after substitution")
	}
}

func TestBuildSingleByteCharset(t *testing.T) {
	b, err := NewBuilder("windows-1252")
	if err != nil {
		t.Fatal(err)
	}
	h, body := b.Build([]byte("café ✓"), "t")

	if ct := h.Get("Content-Type"); ct != "text/html; charset=windows-1252" {
		t.Errorf("Content-Type = %q", ct)
	}
	// é is 0xE9 in windows-1252
	if !bytes.Contains(body, []byte{'c', 'a', 'f', 0xe9}) {
		t.Errorf("é not encoded as 0xE9: %q", body)
	}
	// ✓ has no windows-1252 form and is replaced with the ASCII SUB byte
	if !bytes.Contains(body, []byte{' ', 0x1a}) {
		t.Errorf("unsupported rune not substituted: %q", body)
	}
	if cl := h.Get("Content-Length"); cl != strconv.Itoa(len(body)) {
		t.Errorf("Content-Length = %q, body is %d bytes", cl, len(body))
	}
}

func TestUploadResult(t *testing.T) {
	frag := string(UploadResult("Success", "File '/srv/<x>.txt' upload success!", "/docs/?a=1&b=2"))

	if !strings.Contains(frag, "<h2>Upload Result Page</h2>") {
		t.Errorf("missing heading:\n%s", frag)
	}
	if !strings.Contains(frag, "<strong>Success:</strong>") {
		t.Errorf("missing result label:\n%s", frag)
	}
	if !strings.Contains(frag, "File &#39;/srv/&lt;x&gt;.txt&#39; upload success!") {
		t.Errorf("info not escaped:\n%s", frag)
	}
	if !strings.Contains(frag, `<a href="/docs/?a=1&amp;b=2">back</a>`) {
		t.Errorf("back link not escaped:\n%s", frag)
	}
}
