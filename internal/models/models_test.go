package models

import (
	"reflect"
	"testing"
)

func TestQuestionLess(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"1", "2", true},
		{"2", "10", true},
		{"10", "2", false},
		{"3", "3", false},
		{"1a", "1b", true},
		// Numeric numbers sort before non-numeric labels.
		{"2", "1a", true},
		{"1a", "2", false},
	}
	for _, tc := range cases {
		if got := QuestionLess(tc.a, tc.b); got != tc.want {
			t.Errorf("QuestionLess(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestSortQuestionNumbers(t *testing.T) {
	nums := []string{"10", "2", "1", "21"}
	SortQuestionNumbers(nums)
	if !reflect.DeepEqual(nums, []string{"1", "2", "10", "21"}) {
		t.Fatalf("sorted = %v, want numeric order", nums)
	}
}
