package filter

import (
	"testing"
)

func mustNew(t *testing.T, keywords ...string) *Matcher {
	t.Helper()
	m, err := New(keywords)
	if err != nil {
		t.Fatalf("new matcher: %v", err)
	}
	return m
}

func TestNew_Empty(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("expected error for nil keywords")
	}
	if _, err := New([]string{}); err == nil {
		t.Fatal("expected error for empty keywords")
	}
	if _, err := New([]string{"  ", ""}); err == nil {
		t.Fatal("expected error for blank keywords")
	}
}

func TestNew_InvalidPattern(t *testing.T) {
	if _, err := New([]string{"re:(unclosed"}); err == nil {
		t.Fatal("expected error for invalid pattern")
	}
}

func TestMatches(t *testing.T) {
	m := mustNew(t, "leaf", "cardboard", "garbage")

	tests := []struct {
		text string
		want bool
	}{
		{"Fresh LEAF day", true},
		{"leaf", true},
		{"autumnleafpile", true},
		{"Cardboard pickup moved to Friday", true},
		{"GARBAGE collection", true},
		{"road closure on main street", false},
		{"", false},
		{"lea f", false},
	}

	for _, tt := range tests {
		if got := m.Matches(tt.text); got != tt.want {
			t.Errorf("Matches(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestMatches_Hashtag(t *testing.T) {
	m := mustNew(t, "#leaf")

	if !m.Matches("new #leaf pickup") {
		t.Error("hashtag keyword should match")
	}
	if !m.Matches("NEW #LEAF PICKUP") {
		t.Error("hashtag keyword should match case-insensitively")
	}
	if m.Matches("new leaf pickup") {
		t.Error("hashtag keyword should not match the bare word")
	}
}

func TestMatch_ReturnsFirstConfiguredKeyword(t *testing.T) {
	m := mustNew(t, "garbage", "leaf")

	kw, ok := m.Match("leaf and garbage pickup")
	if !ok {
		t.Fatal("expected match")
	}
	if kw != "garbage" {
		t.Errorf("keyword = %q, want garbage (configured order)", kw)
	}
}

func TestMatch_Pattern(t *testing.T) {
	m := mustNew(t, "re:\\bbulk\\s+pickup\\b", "leaf")

	tests := []struct {
		text    string
		want    bool
		keyword string
	}{
		{"BULK   PICKUP today", true, "re:\\bbulk\\s+pickup\\b"},
		{"bulkpickup", false, ""},
		{"leaf season", true, "leaf"},
	}

	for _, tt := range tests {
		kw, ok := m.Match(tt.text)
		if ok != tt.want {
			t.Errorf("Match(%q) ok = %v, want %v", tt.text, ok, tt.want)
			continue
		}
		if kw != tt.keyword {
			t.Errorf("Match(%q) keyword = %q, want %q", tt.text, kw, tt.keyword)
		}
	}
}

func TestMatch_RegexMetacharactersArePlainInSubstrings(t *testing.T) {
	m := mustNew(t, "c++", "a.b")

	if !m.Matches("learning C++ today") {
		t.Error("expected c++ to match literally")
	}
	if m.Matches("axb") {
		t.Error("a.b should not behave like a pattern")
	}
}

func TestLen(t *testing.T) {
	m := mustNew(t, "a", " ", "b")
	if m.Len() != 2 {
		t.Errorf("len = %d, want 2", m.Len())
	}
}
