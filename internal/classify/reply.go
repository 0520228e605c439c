package classify

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// RelevantSection is one section the reasoner judged relevant.
type RelevantSection struct {
	SectionID       string `json:"sectionId" yaml:"sectionId"`
	SectionTitle    string `json:"sectionTitle" yaml:"sectionTitle"`
	ConfidenceLevel int    `json:"confidenceLevel" yaml:"confidenceLevel"`
	Explanation     string `json:"explanation" yaml:"explanation"`
}

// UnmarshalJSON accepts ids and confidence levels written as numbers or
// strings. Fractional confidence is rounded and levels beyond the int32
// range saturate.
func (s *RelevantSection) UnmarshalJSON(data []byte) error {
	var w struct {
		SectionID       json.RawMessage `json:"sectionId"`
		SectionTitle    string          `json:"sectionTitle"`
		ConfidenceLevel json.RawMessage `json:"confidenceLevel"`
		Explanation     string          `json:"explanation"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	id, err := scalarString(w.SectionID)
	if err != nil {
		return fmt.Errorf("sectionId: %w", err)
	}
	level, err := confidence(w.ConfidenceLevel)
	if err != nil {
		return fmt.Errorf("confidenceLevel: %w", err)
	}
	*s = RelevantSection{
		SectionID:       id,
		SectionTitle:    w.SectionTitle,
		ConfidenceLevel: level,
		Explanation:     w.Explanation,
	}
	return nil
}

func scalarString(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("want string or number, got %s", raw)
	}
	return n.String(), nil
}

func confidence(raw json.RawMessage) (int, error) {
	s, err := scalarString(raw)
	if err != nil {
		return 0, err
	}
	if s = strings.TrimSpace(s); s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, fmt.Errorf("not numeric: %q", s)
	}
	if math.IsNaN(f) {
		return 0, fmt.Errorf("not numeric: %q", s)
	}
	// Out-of-range levels saturate to the int32 bounds.
	return int(math.Round(min(max(f, math.MinInt32), math.MaxInt32))), nil
}

// ErrResponseFormat matches every *ResponseFormatError.
var ErrResponseFormat = errors.New("reply is not a JSON array of sections")

// ResponseFormatError reports a reply that could not be read as sections.
type ResponseFormatError struct {
	Reply string // truncated
	Err   error
}

func (e *ResponseFormatError) Error() string {
	if e.Err == nil {
		return ErrResponseFormat.Error()
	}
	return fmt.Sprintf("%s: %v", ErrResponseFormat, e.Err)
}

func (e *ResponseFormatError) Unwrap() error { return e.Err }

func (e *ResponseFormatError) Is(target error) bool { return target == ErrResponseFormat }

var (
	codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")
	arrayRe     = regexp.MustCompile(`(?s)\[\s*\{.*\}\s*\]`)
)

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// ParseReply reads the reasoner's reply. The whole reply is tried first,
// then the outermost bracketed array of objects found inside it.
func ParseReply(reply string) ([]RelevantSection, error) {
	sections, err := decodeSections(stripCodeBlock(reply))
	if err == nil {
		return sections, nil
	}
	match := arrayRe.FindString(reply)
	if match == "" {
		return nil, &ResponseFormatError{Reply: truncate(reply, 200), Err: err}
	}
	sections, err = decodeSections(match)
	if err != nil {
		return nil, &ResponseFormatError{Reply: truncate(reply, 200), Err: err}
	}
	return sections, nil
}

func decodeSections(s string) ([]RelevantSection, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	var sections []RelevantSection
	if err := dec.Decode(&sections); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after array")
	}
	if sections == nil {
		sections = []RelevantSection{}
	}
	return sections, nil
}
