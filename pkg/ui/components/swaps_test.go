package components

import (
	"strings"
	"testing"
)

func TestSwapsComponentScroll(t *testing.T) {
	c := NewSwapsComponent(5, 2)
	for i := 0; i < 7; i++ {
		c.Add(SwapRow{BlockNumber: uint64(i), Direction: "BUY"})
	}
	if c.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", c.Len())
	}
	if !strings.Contains(c.View(), "showing 1-2 of 5") {
		t.Errorf("view:\n%s", c.View())
	}

	for i := 0; i < 10; i++ {
		c.ScrollDown()
	}
	if !strings.Contains(c.View(), "showing 4-5 of 5") {
		t.Errorf("view after scrolling to the end:\n%s", c.View())
	}

	c.ScrollUp()
	if !strings.Contains(c.View(), "showing 3-4 of 5") {
		t.Errorf("view after scroll up:\n%s", c.View())
	}

	c.Clear()
	if !strings.Contains(c.View(), "No swaps detected") {
		t.Errorf("view after clear:\n%s", c.View())
	}
}

func TestShorten(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"abc", 5, "abc"},
		{"abcdefgh", 6, "abc..."},
		{"abcdefgh", 2, "ab"},
	}
	for _, tt := range tests {
		if got := shorten(tt.in, tt.n); got != tt.want {
			t.Errorf("shorten(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
