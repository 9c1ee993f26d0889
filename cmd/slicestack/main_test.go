package main

import (
	"testing"
)

// TestIntList verifies parsing of comma-separated slice indices
func TestIntList(t *testing.T) {
	got, err := intList(" 138, 275 ,1")
	if err != nil {
		t.Fatalf("Failed to parse list: %v", err)
	}
	want := []int{138, 275, 1}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Index %d: expected %d, got %d", i, want[i], got[i])
		}
	}

	if got, err := intList(""); err != nil || got != nil {
		t.Errorf("Expected empty list without error, got %v, %v", got, err)
	}
	if _, err := intList("12,x"); err == nil {
		t.Error("Expected error for non-numeric index, got nil")
	}
}
