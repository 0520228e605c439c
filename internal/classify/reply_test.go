package classify

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/dgallion1/codebook/internal/toc"
)

func TestParseReply(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    []RelevantSection
		wantErr bool
	}{
		{
			name:  "bare array",
			reply: `[{"sectionId":"chapter-3-section-1","sectionTitle":"§ 3.1 Permitted Uses","confidenceLevel":5,"explanation":"Lists uses."}]`,
			want:  []RelevantSection{{"chapter-3-section-1", "§ 3.1 Permitted Uses", 5, "Lists uses."}},
		},
		{
			name:  "wrapped in prose",
			reply: "Here you go:\n[{\"sectionId\":\"a\",\"sectionTitle\":\"A\",\"confidenceLevel\":2,\"explanation\":\"x\"}]\nHope that helps.",
			want:  []RelevantSection{{"a", "A", 2, "x"}},
		},
		{
			name:  "fenced",
			reply: "```json\n[]\n```",
			want:  []RelevantSection{},
		},
		{
			name:  "string confidence and numeric id",
			reply: `[{"sectionId":12,"sectionTitle":"T","confidenceLevel":"4","explanation":""}]`,
			want:  []RelevantSection{{"12", "T", 4, ""}},
		},
		{
			name:  "fractional confidence rounds",
			reply: `[{"sectionId":"a","confidenceLevel":3.6},{"sectionId":"b","confidenceLevel":"2.4"}]`,
			want:  []RelevantSection{{SectionID: "a", ConfidenceLevel: 4}, {SectionID: "b", ConfidenceLevel: 2}},
		},
		{
			name:  "oversized confidence saturates",
			reply: `[{"sectionId":"a","confidenceLevel":1e20},{"sectionId":"b","confidenceLevel":3},{"sectionId":"c","confidenceLevel":"-1e400"}]`,
			want: []RelevantSection{
				{SectionID: "a", ConfidenceLevel: math.MaxInt32},
				{SectionID: "b", ConfidenceLevel: 3},
				{SectionID: "c", ConfidenceLevel: math.MinInt32},
			},
		},
		{
			name:    "NaN confidence",
			reply:   `[{"sectionId":"a","confidenceLevel":"NaN"}]`,
			wantErr: true,
		},
		{
			name:    "no array",
			reply:   "I could not find any relevant sections.",
			wantErr: true,
		},
		{
			name:    "non numeric confidence",
			reply:   `[{"sectionId":"a","confidenceLevel":"high"}]`,
			wantErr: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseReply(tc.reply)
			if tc.wantErr {
				if !errors.Is(err, ErrResponseFormat) {
					t.Fatalf("expected ErrResponseFormat, got %v", err)
				}
				var rfe *ResponseFormatError
				if !errors.As(err, &rfe) || rfe.Reply == "" {
					t.Errorf("expected *ResponseFormatError carrying the reply, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got == nil || len(got) != len(tc.want) {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Errorf("section %d: got %+v, want %+v", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	entries := []toc.FlattenedEntry{{
		ID:    "chapter-3-section-1",
		Path:  "Title 1 > CHAPTER 3: Zoning > § 3.1 Permitted Uses",
		Title: "§ 3.1 Permitted Uses",
		Type:  toc.TypeSection,
		Level: 2,
	}}
	p, err := BuildPrompt(entries, "zoning")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"information about zoning",
		`"path": "Title 1 > CHAPTER 3: Zoning > § 3.1 Permitted Uses"`,
		`"id": "chapter-3-section-1"`,
		"confidenceLevel",
		"Include only the JSON",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(p, `\u003e`) {
		t.Error("breadcrumb separator was escaped")
	}
}

func TestEstimateTokens(t *testing.T) {
	if EstimateTokens("") != 0 {
		t.Error("expected 0 for empty text")
	}
	if EstimateTokens("x") != 1 {
		t.Error("expected at least 1 token")
	}
	if got := EstimateTokens(strings.Repeat("word ", 100)); got != 133 {
		t.Errorf("expected 133, got %d", got)
	}
}
