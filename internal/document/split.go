package document

import (
	"regexp"
	"strconv"
	"strings"
)

// Chunk is one headed segment of a scene document, not yet parsed.
type Chunk struct {
	Kind     int
	StableID string
	Stripped bool
	Body     string
	Line     int // line of the header
}

// headerPattern matches the part of a delimiter line after "---".
var headerPattern = regexp.MustCompile(`^!u!([0-9]+) &([0-9]+)(\s+stripped)?$`)

const delimiter = "---"

// Split breaks a scene document into headed chunks.
//
// Lines starting with "%" are directives and are dropped. Each line starting
// with "---" opens a new segment; its remainder is the header. Segments with
// no header and only whitespace are skipped. A segment with content but no
// header, or with a header that does not match, is MALFORMED_DOCUMENT.
func Split(text string) ([]Chunk, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var (
		chunks []Chunk
		header string
		start  = 1
		body   strings.Builder
	)

	flush := func() error {
		defer body.Reset()
		if header == "" {
			if strings.TrimSpace(body.String()) == "" {
				return nil
			}
			return &Error{Code: ErrCodeMalformedDocument, Line: start, Message: "record content without a header"}
		}
		m := headerPattern.FindStringSubmatch(header)
		if m == nil {
			return &Error{Code: ErrCodeMalformedDocument, Line: start, Message: "unrecognized header " + strconv.Quote(header)}
		}
		kind, err := strconv.Atoi(m[1])
		if err != nil {
			return &Error{Code: ErrCodeMalformedDocument, Line: start, Message: "class id out of range", Err: err}
		}
		chunks = append(chunks, Chunk{
			Kind:     kind,
			StableID: m[2],
			Stripped: m[3] != "",
			Body:     body.String(),
			Line:     start,
		})
		return nil
	}

	for i, line := range strings.Split(text, "\n") {
		lineNo := i + 1
		if strings.HasPrefix(line, "%") {
			continue
		}
		if strings.HasPrefix(line, delimiter) {
			if err := flush(); err != nil {
				return nil, err
			}
			header = strings.TrimSpace(line[len(delimiter):])
			start = lineNo
			continue
		}
		body.WriteString(line)
		body.WriteByte('\n')
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return chunks, nil
}
