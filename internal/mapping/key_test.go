package mapping

import "testing"

func TestBuildKey(t *testing.T) {
	cases := []struct {
		name   string
		values []string
		want   string
		wantOK bool
	}{
		{"single segment", []string{"015"}, "015", true},
		{"two segments", []string{"015", "1544"}, "015:1544", true},
		{"whitespace trimmed", []string{" 015 ", "\t1544"}, "015:1544", true},
		{"trailing empty kept", []string{"015", ""}, "015:", true},
		{"leading empty kept", []string{"", "1544"}, ":1544", true},
		{"all empty", []string{"", "  ", "\t"}, "", false},
		{"no segments", nil, "", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := BuildKey(c.values)
			if ok != c.wantOK {
				t.Fatalf("BuildKey(%v) ok=%v want %v", c.values, ok, c.wantOK)
			}
			if got != c.want {
				t.Fatalf("BuildKey(%v)=%q want %q", c.values, got, c.want)
			}
		})
	}
}

func TestBuildKeyDeterministic(t *testing.T) {
	values := []string{"ABC Corp", "123456789"}
	first, ok := BuildKey(values)
	if !ok {
		t.Fatalf("unexpected unresolvable key")
	}
	for i := 0; i < 10; i++ {
		again, _ := BuildKey(values)
		if again != first {
			t.Fatalf("key not deterministic: %q vs %q", again, first)
		}
	}
}
