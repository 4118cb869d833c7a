// Package parsers holds the built-in input parsers. They are registered
// explicitly; there is no discovery.
package parsers

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lth/hashcollider/internal/extract"
)

var errMalformed = errors.New("malformed input")

// Default returns every built-in parser in the order they are tried. The
// words parser accepts any non-blank input, so it comes last.
func Default() []extract.Parser {
	return []extract.Parser{
		HTTPRequest{},
		URL{},
		Timestamp{},
		JSON{},
		HTTPParams{},
		Words{},
	}
}

// ByName builds a registry with the named parsers in the given order. An
// empty list registers Default().
func ByName(names []string) (*extract.Registry, error) {
	if len(names) == 0 {
		return extract.NewRegistry(Default()...)
	}
	all, err := extract.NewRegistry(Default()...)
	if err != nil {
		return nil, err
	}
	r := &extract.Registry{}
	for _, name := range names {
		p, ok := all.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", extract.ErrUnknownParser, name)
		}
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// HTTPParams yields the values of a query string such as "a=1&b=2".
// Blank values are kept; a pair without "=" is malformed.
type HTTPParams struct{}

func (HTTPParams) Name() string { return "httpparams" }

func (p HTTPParams) Check(input string) bool {
	_, err := p.Parse(input)
	return err == nil
}

func (HTTPParams) Parse(input string) (extract.Parsed, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, errMalformed
	}
	var out extract.Sequence
	for _, pair := range strings.FieldsFunc(input, func(r rune) bool { return r == '&' || r == ';' }) {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: bad query pair %q", errMalformed, pair)
		}
		v, err := url.QueryUnescape(value)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, errMalformed
	}
	return out, nil
}

// URL splits an absolute URL into host labels, path segments, query keys
// and values and the fragment.
type URL struct{}

func (URL) Name() string { return "url" }

func (URL) Check(input string) bool {
	u, err := url.Parse(strings.TrimSpace(input))
	return err == nil && u.Scheme != "" && u.Host != ""
}

func (URL) Parse(input string) (extract.Parsed, error) {
	u, err := url.Parse(strings.TrimSpace(input))
	if err != nil {
		return nil, err
	}
	out := extract.Sequence{u.Hostname()}
	out = append(out, strings.Split(u.Hostname(), ".")...)
	if port := u.Port(); port != "" {
		out = append(out, port)
	}
	if u.User != nil {
		out = append(out, u.User.Username())
		if pw, ok := u.User.Password(); ok {
			out = append(out, pw)
		}
	}
	out = append(out, pathSegments(u.Path)...)
	out = append(out, queryElements(u.Query())...)
	if u.Fragment != "" {
		out = append(out, u.Fragment)
	}
	return out, nil
}

// HTTPRequest parses a raw HTTP/1.x request.
type HTTPRequest struct{}

func (HTTPRequest) Name() string { return "httprequest" }

func (p HTTPRequest) Check(input string) bool {
	line, _, _ := strings.Cut(strings.TrimLeft(input, "\r\n"), "\n")
	fields := strings.Fields(line)
	return len(fields) == 3 && strings.HasPrefix(fields[2], "HTTP/")
}

func (HTTPRequest) Parse(input string) (extract.Parsed, error) {
	raw := strings.TrimLeft(input, "\r\n")
	if !strings.Contains(raw, "\r\n") {
		raw = strings.ReplaceAll(raw, "\n", "\r\n")
	}
	if !strings.Contains(raw, "\r\n\r\n") {
		raw += "\r\n\r\n"
	}
	req, err := http.ReadRequest(bufio.NewReader(strings.NewReader(raw)))
	if err != nil {
		return nil, err
	}
	defer req.Body.Close()

	var out extract.Sequence
	if req.Host != "" {
		out = append(out, req.Host)
	}
	out = append(out, pathSegments(req.URL.Path)...)
	out = append(out, queryElements(req.URL.Query())...)
	for name, values := range req.Header {
		if name == "Cookie" || name == "Content-Length" {
			continue
		}
		out = append(out, values...)
	}
	for _, c := range req.Cookies() {
		out = append(out, c.Name, c.Value)
	}
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	if len(body) > 0 {
		if form, err := url.ParseQuery(string(body)); err == nil {
			out = append(out, queryElements(form)...)
		} else {
			out = append(out, string(body))
		}
	}
	return out, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Timestamp recognises unix seconds or milliseconds and common date
// layouts and yields the renderings a developer might have hashed.
type Timestamp struct{}

func (Timestamp) Name() string { return "timestamp" }

func (p Timestamp) Check(input string) bool {
	_, err := parseTime(strings.TrimSpace(input))
	return err == nil
}

func (Timestamp) Parse(input string) (extract.Parsed, error) {
	input = strings.TrimSpace(input)
	t, err := parseTime(input)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return extract.Sequence{
		input,
		strconv.FormatInt(t.Unix(), 10),
		strconv.FormatInt(t.UnixMilli(), 10),
		t.Format("2006"),
		t.Format("01"),
		t.Format("02"),
		t.Format("15"),
		t.Format("04"),
		t.Format("05"),
		t.Format("20060102"),
		t.Format("150405"),
		t.Format("2006-01-02"),
		t.Format("15:04:05"),
		t.Format(time.RFC3339),
	}, nil
}

func parseTime(s string) (time.Time, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		switch {
		// 2001-09-09 .. 2286-11-20 in seconds
		case len(s) == 10:
			return time.Unix(n, 0), nil
		case len(s) == 13:
			return time.UnixMilli(n), nil
		}
		return time.Time{}, errMalformed
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errMalformed
}

// JSON maps objects to a Mapping of their top-level members, arrays to a
// Sequence and bare scalars to a Scalar.
type JSON struct{}

func (JSON) Name() string { return "json" }

func (JSON) Check(input string) bool {
	s := strings.TrimSpace(input)
	if !strings.HasPrefix(s, "{") && !strings.HasPrefix(s, "[") && !strings.HasPrefix(s, `"`) {
		return false
	}
	return json.Valid([]byte(s))
}

func (JSON) Parse(input string) (extract.Parsed, error) {
	var v any
	if err := json.Unmarshal([]byte(strings.TrimSpace(input)), &v); err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case map[string]any:
		m := make(extract.Mapping, len(t))
		for k, val := range t {
			m[k] = jsonString(val)
		}
		return m, nil
	case []any:
		out := make(extract.Sequence, len(t))
		for i, val := range t {
			out[i] = jsonString(val)
		}
		return out, nil
	default:
		return extract.Scalar{Value: jsonString(t)}, nil
	}
}

func jsonString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return "null"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]any, []any:
		b, _ := json.Marshal(t)
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

// Words is the fallback: it splits on whitespace and common punctuation.
type Words struct{}

func (Words) Name() string { return "words" }

func (Words) Check(input string) bool {
	return len(splitWords(input)) > 0
}

func (Words) Parse(input string) (extract.Parsed, error) {
	words := splitWords(input)
	if len(words) == 0 {
		return nil, errMalformed
	}
	return extract.Sequence(words), nil
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case ' ', '\t', '\r', '\n', ',', ';', ':', '&', '/':
			return true
		}
		return false
	})
}

func pathSegments(p string) []string {
	var out []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

func queryElements(q url.Values) []string {
	var out []string
	for k, values := range q {
		out = append(out, k)
		out = append(out, values...)
	}
	return out
}
