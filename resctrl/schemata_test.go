package resctrl

import "testing"

func TestParseSchemataAllLineKinds(t *testing.T) {
	text := "L3:0=fff;1=f0f\nL3CODE:0=0f0f\nL3DATA:0=f0f0\nL2:0=3;1=c\nMB:0=100;1=50\nSMBA:0=80\n"
	s, err := ParseSchemata(text)
	if err != nil {
		t.Fatalf("ParseSchemata: %v", err)
	}
	if s.L3[0] != 0xfff || s.L3[1] != 0xf0f {
		t.Fatalf("L3 = %v", s.L3)
	}
	if s.L3Code[0] != 0x0f0f {
		t.Fatalf("L3CODE = %v", s.L3Code)
	}
	if s.L3Data[0] != 0xf0f0 {
		t.Fatalf("L3DATA = %v", s.L3Data)
	}
	if s.L2[0] != 3 || s.L2[1] != 0xc {
		t.Fatalf("L2 = %v", s.L2)
	}
	if s.MB[0] != 100 || s.MB[1] != 50 {
		t.Fatalf("MB = %v", s.MB)
	}
	if s.SMBA[0] != 80 {
		t.Fatalf("SMBA = %v", s.SMBA)
	}
}

func TestSchemataFormatRoundTrip(t *testing.T) {
	text := "L3:0=fff;1=f0f\nMB:0=100;1=50\n"
	s, err := ParseSchemata(text)
	if err != nil {
		t.Fatalf("ParseSchemata: %v", err)
	}
	got := s.Format()
	if got != text {
		t.Fatalf("Format round trip = %q, want %q", got, text)
	}
}

func TestSetHexEntryPatchesSingleClass(t *testing.T) {
	s, err := ParseSchemata("L3:0=fff;1=fff;2=fff\n")
	if err != nil {
		t.Fatalf("ParseSchemata: %v", err)
	}
	s.SetHexEntry("L3", 1, 0x0f)
	if s.L3[0] != 0xfff || s.L3[1] != 0x0f || s.L3[2] != 0xfff {
		t.Fatalf("patched entries = %v", s.L3)
	}
}

func TestParseSchemataRejectsMalformedLine(t *testing.T) {
	if _, err := ParseSchemata("garbage line without a colon\n"); err == nil {
		t.Fatal("expected an error for a malformed line")
	}
}

func TestParseSchemataRejectsUnknownKind(t *testing.T) {
	if _, err := ParseSchemata("FOO:0=1\n"); err == nil {
		t.Fatal("expected an error for an unknown line kind")
	}
}
