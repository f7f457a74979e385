package errors

import (
	"strings"
	"testing"
)

func TestNewIncludesLocation(t *testing.T) {
	err := New("something broke: %s", "disk")
	if !strings.Contains(err.Error(), "errors_test.go") {
		t.Errorf("expected file name in error, got %q", err.Error())
	}
	if !strings.Contains(err.Error(), "something broke: disk") {
		t.Errorf("expected formatted message in error, got %q", err.Error())
	}
}

func TestWrapfNil(t *testing.T) {
	if err := Wrapf(nil, "context"); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestKindOfTaggedError(t *testing.T) {
	err := Newk(KindConfiguration, "no client for provider %q", "openai")
	if got := KindOf(err); got != KindConfiguration {
		t.Errorf("expected KindConfiguration, got %q", got)
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	inner := Newk(KindProvider, "upstream returned 503")
	wrapped := Wrapf(inner, "completion failed")
	if got := KindOf(wrapped); got != KindProvider {
		t.Errorf("expected KindProvider through wrap, got %q", got)
	}
}

func TestKindOfUntagged(t *testing.T) {
	if got := KindOf(New("plain")); got != "" {
		t.Errorf("expected empty kind, got %q", got)
	}
	if got := KindOf(nil); got != "" {
		t.Errorf("expected empty kind for nil, got %q", got)
	}
}

func TestWithKindNil(t *testing.T) {
	if err := WithKind(KindParse, nil); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestOutermostKindWins(t *testing.T) {
	err := WithKind(KindCancelled, Newk(KindProvider, "aborted mid-call"))
	if got := KindOf(err); got != KindCancelled {
		t.Errorf("expected outermost KindCancelled, got %q", got)
	}
}
