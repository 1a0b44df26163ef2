package resctrl

import (
	"reflect"
	"sort"
	"testing"
)

func TestFormatCPUMaskSingleWord(t *testing.T) {
	got := FormatCPUMask([]int{0, 1, 4})
	want := "00000013"
	if got != want {
		t.Fatalf("FormatCPUMask = %q, want %q", got, want)
	}
}

func TestFormatCPUMaskCrossesWordBoundary(t *testing.T) {
	// cpu 32 lives in word 1, bit 0, so the mask grows to two words;
	// word 0 still carries cpu 0, and the word position encodes the cpu
	// range, matching the kernel's little-endian word ordering.
	got := FormatCPUMask([]int{0, 32})
	want := "00000001,00000001"
	if got != want {
		t.Fatalf("FormatCPUMask = %q, want %q", got, want)
	}
}

func TestParseCPUMaskRoundTrip(t *testing.T) {
	in := []int{0, 3, 31, 32, 40, 63}
	s := FormatCPUMask(in)
	out, err := ParseCPUMask(s)
	if err != nil {
		t.Fatalf("ParseCPUMask: %v", err)
	}
	sort.Ints(in)
	sort.Ints(out)
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip mismatch: got %v, want %v", out, in)
	}
}

func TestParseCPUMaskEmpty(t *testing.T) {
	out, err := ParseCPUMask("")
	if err != nil || out != nil {
		t.Fatalf("ParseCPUMask(\"\") = %v, %v; want nil, nil", out, err)
	}
}

func TestParseCPUMaskRejectsGarbage(t *testing.T) {
	if _, err := ParseCPUMask("not-hex"); err == nil {
		t.Fatal("expected an error for a non-hex word")
	}
}
