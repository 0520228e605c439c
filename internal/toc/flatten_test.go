package toc

import (
	"reflect"
	"testing"
)

func TestFlatten_OnlySectionsWithPaths(t *testing.T) {
	entries := FlattenAll(sampleTree())

	if len(entries) != Count(sampleTree()).Sections {
		t.Fatalf("expected %d entries, got %d", Count(sampleTree()).Sections, len(entries))
	}

	wantPaths := []string{
		"Title 1 - General > CHAPTER 3: Zoning Regulations > § 3.1 Permitted Uses",
		"Title 1 - General > CHAPTER 3: Zoning Regulations > § 3.2 Setbacks",
		"Title 1 - General > CHAPTER 4: Streets > § 4.1 Sidewalks",
	}
	for i, e := range entries {
		if e.Type != TypeSection {
			t.Errorf("entry %d: expected Section, got %s", i, e.Type)
		}
		if e.Level != 2 {
			t.Errorf("entry %d: expected level 2, got %d", i, e.Level)
		}
		if e.Path != wantPaths[i] {
			t.Errorf("entry %d: path = %q, want %q", i, e.Path, wantPaths[i])
		}
	}
	if entries[1].ID != "chapter-3-section-2" || entries[1].SectionNumber != "2" {
		t.Errorf("unexpected second entry: %+v", entries[1])
	}
}

func TestFlatten_Idempotent(t *testing.T) {
	tree := sampleTree()
	first := FlattenAll(tree)
	second := FlattenAll(tree)
	if !reflect.DeepEqual(first, second) {
		t.Error("expected identical output on repeated flatten")
	}

	seq := Flatten(tree)
	var a, b []FlattenedEntry
	for e := range seq {
		a = append(a, e)
	}
	for e := range seq {
		b = append(b, e)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("expected the same sequence to be restartable")
	}
}

func TestFlatten_EarlyStop(t *testing.T) {
	var got []string
	for e := range Flatten(sampleTree()) {
		got = append(got, e.Title)
		if len(got) == 2 {
			break
		}
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries before break, got %d", len(got))
	}
}

func TestFlatten_EmptyTree(t *testing.T) {
	entries := FlattenAll(nil)
	if entries == nil {
		t.Fatal("expected non-nil slice")
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries, got %d", len(entries))
	}

	titleOnly := []*Node{{Title: "Lonely", Type: TypeTitle}}
	if n := len(FlattenAll(titleOnly)); n != 0 {
		t.Errorf("expected no entries for a tree without sections, got %d", n)
	}
}

func TestFlatten_SiblingPathsDoNotLeak(t *testing.T) {
	// Sibling breadcrumbs share a backing array; a later sibling must not
	// overwrite an earlier one's path.
	tree := []*Node{{
		Title: "T",
		Type:  TypeTitle,
		Children: []*Node{
			{Title: "C1", Type: TypeChapter, Children: []*Node{{Title: "S1", Type: TypeSection}}},
			{Title: "C2", Type: TypeChapter, Children: []*Node{{Title: "S2", Type: TypeSection}}},
		},
	}}
	entries := FlattenAll(tree)
	if entries[0].Path != "T > C1 > S1" || entries[1].Path != "T > C2 > S2" {
		t.Errorf("unexpected paths: %q, %q", entries[0].Path, entries[1].Path)
	}
}

func TestPathsOnly(t *testing.T) {
	paths := PathsOnly(FlattenAll(sampleTree()))
	if len(paths) != 3 {
		t.Fatalf("expected 3 paths, got %d", len(paths))
	}
	if paths[2].Path != "Title 1 - General > CHAPTER 4: Streets > § 4.1 Sidewalks" {
		t.Errorf("unexpected path %q", paths[2].Path)
	}
}
