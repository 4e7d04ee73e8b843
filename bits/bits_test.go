package bits

import "testing"

func TestGetSet(t *testing.T) {
	var v uint32

	Set(&v, 3)
	if !Get(&v, 3) {
		t.Fatal("expected bit 3 set")
	}

	Clear(&v, 3)
	if Get(&v, 3) {
		t.Fatal("expected bit 3 clear")
	}

	SetTo(&v, 5, true)
	if !Get(&v, 5) {
		t.Fatal("expected bit 5 set via SetTo")
	}
}

func TestSetNGetN(t *testing.T) {
	var v uint32

	SetN(&v, 8, 0xff, 0xab)
	if got := GetN(&v, 8, 0xff); got != 0xab {
		t.Fatalf("GetN = %#x, want 0xab", got)
	}

	// neighboring bits must be untouched
	SetN(&v, 0, 0xff, 0xcd)
	if got := GetN(&v, 8, 0xff); got != 0xab {
		t.Fatalf("SetN clobbered unrelated field: got %#x", got)
	}
}
