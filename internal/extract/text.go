package extract

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// legacyEncodings are tried in order for text that is not valid UTF-8.
var legacyEncodings = []struct {
	name string
	enc  encoding.Encoding
}{
	{"windows-1252", charmap.Windows1252},
	{"windows-1250", charmap.Windows1250},
}

// decodeText returns data as UTF-8. Invalid UTF-8 is decoded with the first
// legacy code page that maps every byte, falling back to ISO-8859-1.
func decodeText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data), nil
	}
	for _, le := range legacyEncodings {
		out, err := le.enc.NewDecoder().Bytes(data)
		if err != nil {
			continue
		}
		if !bytes.ContainsRune(out, utf8.RuneError) {
			return string(out), nil
		}
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", eris.Wrap(err, "extract: decode text")
	}
	return string(out), nil
}

// csvText renders CSV rows with tab-separated cells.
func csvText(data []byte) (string, error) {
	text, err := decodeText(data)
	if err != nil {
		return "", err
	}
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var lines []string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", eris.Wrap(err, "extract: parse csv")
		}
		lines = append(lines, strings.Join(rec, "\t"))
	}
	return strings.Join(lines, "\n"), nil
}

// jsonText validates JSON and returns it indented.
func jsonText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return "", eris.Wrap(err, "extract: parse json")
	}
	return buf.String(), nil
}

// xmlText returns the character data of an XML document, one element's text
// per line. Declared charsets are honored.
func xmlText(data []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "extract: unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}

	var lines []string
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", eris.Wrap(err, "extract: read xml token")
		}
		if cd, ok := tok.(xml.CharData); ok {
			if s := strings.TrimSpace(string(cd)); s != "" {
				lines = append(lines, s)
			}
		}
	}
	return strings.Join(lines, "\n"), nil
}
