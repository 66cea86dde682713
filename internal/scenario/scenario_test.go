package scenario

import (
	"errors"
	"testing"
)

func TestParse_Valid(t *testing.T) {
	tag, err := Parse("scenario_super_12_B_7f3a9c")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tag.Number != 12 {
		t.Errorf("expected number=12, got %d", tag.Number)
	}
	if tag.Letter != "B" {
		t.Errorf("expected letter=B, got %s", tag.Letter)
	}
}

func TestParse_NoTrailingContent(t *testing.T) {
	tag, err := Parse("scenario_super_3_a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tag.Number != 3 || tag.Letter != "a" {
		t.Errorf("got %+v", tag)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []string{
		"",
		"ORD-12345",
		"super_12_B",           // missing scenario prefix
		"scenario_12_B",        // missing super
		"scenario_super_B_12",  // letter and number swapped
		"scenario_super_12",    // no letter
		"scenario_super__B",    // no digits
		"scenario_super_12_99", // digit where letter expected
	}
	for _, id := range tests {
		if _, err := Parse(id); err == nil {
			t.Errorf("expected error for order id %q", id)
		}
	}
}

func TestParse_WrongPrefixError(t *testing.T) {
	_, err := Parse("manual_order_1_A")
	if !errors.Is(err, ErrInvalidTag) {
		t.Errorf("expected ErrInvalidTag, got %v", err)
	}
}
