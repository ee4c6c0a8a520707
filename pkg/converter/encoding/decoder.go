// Package encoding normalizes raw activity-log bytes to UTF-8 before they
// reach a handler, and recognises content that is not text at all.
package encoding

import (
	"bytes"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	xencoding "golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

const (
	// sniffLen is the number of bytes inspected by http.DetectContentType.
	sniffLen = 512
	// nullCheckLen bounds the prefix scanned for NUL bytes.
	nullCheckLen = 1024
	// nullThreshold is the NUL-byte ratio above which content is binary.
	nullThreshold = 0.10
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// xmlDeclEncoding matches the encoding pseudo-attribute of an XML declaration.
var xmlDeclEncoding = regexp.MustCompile(`^(\s*<\?xml[^>]*?\bencoding\s*=\s*)(["'])([A-Za-z0-9._:\-]+)(["'])`)

// Decoder converts file content to UTF-8 and detects binary files.
type Decoder interface {
	// DetectAndDecode returns content as UTF-8, the IANA name of the source
	// encoding and whether that encoding was determined with certainty
	// (BOM or explicit XML declaration). A leading UTF-8 BOM is removed and
	// an XML declaration's encoding is rewritten to UTF-8 so downstream
	// parsers do not decode twice.
	DetectAndDecode(content []byte) (utf8Content []byte, detectedEncoding string, certain bool, err error)

	// IsBinary reports whether content is likely binary data.
	IsBinary(content []byte) bool
}

type charsetDecoder struct {
	defaultEncoding string
}

// NewCharsetDecoder returns a Decoder backed by golang.org/x/net/html/charset.
// defaultEncoding is used when content is neither valid UTF-8 nor labelled.
func NewCharsetDecoder(defaultEncoding string) Decoder {
	return &charsetDecoder{defaultEncoding: defaultEncoding}
}

func (d *charsetDecoder) DetectAndDecode(content []byte) ([]byte, string, bool, error) {
	if bytes.HasPrefix(content, utf8BOM) {
		return rewriteDeclaration(content[len(utf8BOM):]), "utf-8", true, nil
	}

	// UTF-16 and other BOMs: DetermineEncoding only reports certainty for those.
	if enc, name, certain := charset.DetermineEncoding(content, ""); certain {
		out, err := decodeWith(content, enc, name)
		if err != nil {
			return content, name, true, err
		}
		return rewriteDeclaration(stripBOM(out)), name, true, nil
	}

	if m := xmlDeclEncoding.FindSubmatch(content); m != nil {
		label := string(m[3])
		enc, name := charset.Lookup(label)
		if enc == nil {
			return content, label, false, fmt.Errorf("unsupported declared encoding %q", label)
		}
		out, err := decodeWith(content, enc, name)
		if err != nil {
			return content, name, true, err
		}
		return rewriteDeclaration(out), name, true, nil
	}

	if utf8.Valid(content) {
		return content, "utf-8", false, nil
	}

	if d.defaultEncoding != "" {
		if enc, name := charset.Lookup(d.defaultEncoding); enc != nil {
			out, err := decodeWith(content, enc, name)
			return out, name, false, err
		}
	}

	enc, name, _ := charset.DetermineEncoding(content, "")
	out, err := decodeWith(content, enc, name)
	return out, name, false, err
}

// IsBinary uses MIME sniffing first and falls back to a NUL-byte ratio.
func (d *charsetDecoder) IsBinary(content []byte) bool {
	if len(content) == 0 {
		return false
	}
	if bytes.HasPrefix(content, []byte{0xFF, 0xFE}) || bytes.HasPrefix(content, []byte{0xFE, 0xFF}) {
		// UTF-16 text is NUL-heavy by nature.
		return false
	}

	sniff := content
	if len(sniff) > sniffLen {
		sniff = sniff[:sniffLen]
	}
	if !isTextMIME(http.DetectContentType(sniff)) {
		return true
	}

	check := content
	if len(check) > nullCheckLen {
		check = check[:nullCheckLen]
	}
	nulls := bytes.Count(check, []byte{0x00})
	return float64(nulls)/float64(len(check)) > nullThreshold
}

func isTextMIME(contentType string) bool {
	mimeType := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	switch {
	case strings.HasPrefix(mimeType, "text/"),
		mimeType == "application/json",
		mimeType == "application/xml",
		strings.HasSuffix(mimeType, "+xml"),
		strings.HasSuffix(mimeType, "+json"),
		mimeType == "application/octet-stream": // decided by the NUL check
		return true
	}
	return false
}

func decodeWith(content []byte, enc xencoding.Encoding, name string) ([]byte, error) {
	if enc == nil || enc == xencoding.Nop {
		return content, nil
	}
	out, _, err := transform.Bytes(enc.NewDecoder(), content)
	if err != nil {
		return content, fmt.Errorf("failed to convert from %q: %w", name, err)
	}
	return out, nil
}

func stripBOM(content []byte) []byte {
	return bytes.TrimPrefix(content, utf8BOM)
}

// rewriteDeclaration relabels an XML declaration as UTF-8.
func rewriteDeclaration(content []byte) []byte {
	loc := xmlDeclEncoding.FindSubmatchIndex(content)
	if loc == nil {
		return content
	}
	// loc[6]:loc[7] is the label group.
	out := make([]byte, 0, len(content))
	out = append(out, content[:loc[6]]...)
	out = append(out, "UTF-8"...)
	out = append(out, content[loc[7]:]...)
	return out
}
