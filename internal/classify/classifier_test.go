package classify_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/codebook/internal/classify"
	"github.com/dgallion1/codebook/internal/llm"
	"github.com/dgallion1/codebook/internal/llm/mocks"
	"github.com/dgallion1/codebook/internal/toc"
	"go.uber.org/mock/gomock"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

var entries = []toc.FlattenedEntry{
	{ID: "s1", Path: "T > C > § 1.1 Parking", Title: "§ 1.1 Parking", Type: toc.TypeSection, Level: 2},
	{ID: "s2", Path: "T > C > § 1.2 Districts", Title: "§ 1.2 Districts", Type: toc.TypeSection, Level: 2},
	{ID: "s3", Path: "T > C > § 1.3 Signs", Title: "§ 1.3 Signs", Type: toc.TypeSection, Level: 2},
}

func TestClassify_SortsDescendingStable(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	reasoner := mocks.NewMockReasoner(ctrl)
	reasoner.EXPECT().
		Generate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, prompt string) (string, error) {
			if !strings.Contains(prompt, "information about zoning") {
				t.Errorf("prompt does not name the target")
			}
			return `[
				{"sectionId":"s1","sectionTitle":"§ 1.1 Parking","confidenceLevel":3,"explanation":"a"},
				{"sectionId":"s2","sectionTitle":"§ 1.2 Districts","confidenceLevel":5,"explanation":"b"},
				{"sectionId":"s3","sectionTitle":"§ 1.3 Signs","confidenceLevel":3,"explanation":"c"}
			]`, nil
		})

	got, err := classify.New(reasoner, classify.Options{}, nil).Classify(context.Background(), entries, "zoning")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"s2", "s1", "s3"}
	if len(got) != len(want) {
		t.Fatalf("expected %d sections, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].SectionID != id {
			t.Errorf("position %d: got %s, want %s", i, got[i].SectionID, id)
		}
	}
}

func TestClassify_ProseWrappedReply(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	reasoner := mocks.NewMockReasoner(ctrl)
	reasoner.EXPECT().Generate(gomock.Any(), gomock.Any()).
		Return("Sure! Here are the sections:\n[{\"sectionId\":\"s2\",\"sectionTitle\":\"§ 1.2 Districts\",\"confidenceLevel\":4,\"explanation\":\"districts\"}]", nil)

	got, err := classify.New(reasoner, classify.Options{}, nil).Classify(context.Background(), entries, "zoning")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].SectionID != "s2" || got[0].ConfidenceLevel != 4 {
		t.Errorf("unexpected result %+v", got)
	}
}

func TestClassify_NoArrayIsResponseFormatError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	reasoner := mocks.NewMockReasoner(ctrl)
	reasoner.EXPECT().Generate(gomock.Any(), gomock.Any()).Return("I could not find any relevant sections.", nil)

	_, err := classify.New(reasoner, classify.Options{}, nil).Classify(context.Background(), entries, "zoning")
	if !errors.Is(err, classify.ErrResponseFormat) {
		t.Fatalf("expected ErrResponseFormat, got %v", err)
	}
}

func TestClassify_ClampConfidence(t *testing.T) {
	reply := `[{"sectionId":"s1","confidenceLevel":9},{"sectionId":"s2","confidenceLevel":0}]`
	r := llm.ReasonerFunc(func(context.Context, string) (string, error) { return reply, nil })

	unclamped, err := classify.New(r, classify.Options{}, nil).Classify(context.Background(), entries, "zoning")
	if err != nil {
		t.Fatal(err)
	}
	if unclamped[0].ConfidenceLevel != 9 || unclamped[1].ConfidenceLevel != 0 {
		t.Errorf("expected values passed through, got %+v", unclamped)
	}

	clamped, err := classify.New(r, classify.Options{ClampConfidence: true}, nil).Classify(context.Background(), entries, "zoning")
	if err != nil {
		t.Fatal(err)
	}
	if clamped[0].ConfidenceLevel != 5 || clamped[1].ConfidenceLevel != 1 {
		t.Errorf("expected values clamped to [1,5], got %+v", clamped)
	}
}

func TestClassify_EmptyInputs(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// No EXPECT: any call fails the test.
	reasoner := mocks.NewMockReasoner(ctrl)
	c := classify.New(reasoner, classify.Options{}, nil)

	if _, err := c.Classify(context.Background(), entries, "  "); !errors.Is(err, classify.ErrEmptyTarget) {
		t.Errorf("expected ErrEmptyTarget, got %v", err)
	}
	got, err := c.Classify(context.Background(), nil, "zoning")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil result, got %#v", got)
	}
}

func TestClassify_TimeoutAndReasonerError(t *testing.T) {
	r := llm.ReasonerFunc(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	c := classify.New(r, classify.Options{Timeout: 20 * time.Millisecond}, nil)

	start := time.Now()
	_, err := c.Classify(context.Background(), entries, "zoning")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if !errors.Is(err, classify.ErrReasoner) {
		t.Errorf("expected ErrReasoner, got %v", err)
	}
	if errors.Is(err, classify.ErrResponseFormat) {
		t.Error("transport failure must not be reported as a format error")
	}
	if time.Since(start) > 2*time.Second {
		t.Error("timeout was not applied")
	}
}
