package ipv4

import "testing"

func TestRoundTrip(t *testing.T) {
	h := Header{
		TOS:         0,
		TotalLength: 33,
		Protocol:    ProtocolUDP,
		TTL:         64,
		Source:      [4]byte{10, 0, 0, 2},
		Destination: [4]byte{10, 0, 0, 1},
	}

	buf := make([]byte, HeaderLen)
	if _, err := Serialise(h, buf); err != nil {
		t.Fatal(err)
	}

	if buf[0] != 0x45 {
		t.Fatalf("version/ihl byte = %#x, want 0x45", buf[0])
	}

	got, err := Parse(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got != h {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestParseRejectsOptions(t *testing.T) {
	buf := make([]byte, HeaderLen)
	buf[0] = 0x46 // version=4, ihl=6

	if _, err := Parse(buf); err != errIHL {
		t.Fatalf("err = %v, want errIHL", err)
	}
}

func TestParseRejectsWrongVersion(t *testing.T) {
	buf := make([]byte, HeaderLen)
	buf[0] = 0x55 // version=5, ihl=5

	if _, err := Parse(buf); err != errNotVersion {
		t.Fatalf("err = %v, want errNotVersion", err)
	}
}

func TestSerialiseChecksumAlwaysZero(t *testing.T) {
	h := Header{Checksum: 0xffff}
	buf := make([]byte, HeaderLen)
	Serialise(h, buf)

	if buf[10] != 0 || buf[11] != 0 {
		t.Fatal("checksum field must be serialised as zero for NIC offload")
	}
}
