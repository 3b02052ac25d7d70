package vision

import "testing"

func TestParseFilter(t *testing.T) {
	for _, m := range []FilterMethod{FilterGaussian, Filter2D, FilterSeparable} {
		got, err := ParseFilter(m.String())
		if err != nil || got != m {
			t.Fatalf("ParseFilter(%q) = %v, %v", m.String(), got, err)
		}
	}
	if _, err := ParseFilter("median"); err == nil {
		t.Fatal("expected error for unknown filter")
	}
}
