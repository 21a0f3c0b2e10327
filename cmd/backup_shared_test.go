package cmd

import (
	"reflect"
	"testing"
)

func TestNormalizeTableList(t *testing.T) {
	got := normalizeTableList([]string{" Decks ", "cards,Reviews", "", " , "})
	want := []string{"decks", "cards", "reviews"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if normalizeTableList(nil) != nil {
		t.Error("expected nil for empty input")
	}
}
