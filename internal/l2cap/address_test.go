package l2cap

import "testing"

func TestParseFormatAddressRoundTrip(t *testing.T) {
	addr := "aa:bb:cc:dd:ee:ff"
	b, err := parseAddress(addr)
	if err != nil {
		t.Fatal(err)
	}
	got := formatAddress(b)
	if got != addr {
		t.Errorf("round trip = %s, want %s", got, addr)
	}
}

func TestParseAddressRejectsGarbage(t *testing.T) {
	if _, err := parseAddress("not-an-address"); err == nil {
		t.Error("expected an error for a malformed address")
	}
}

func TestParseAddressByteOrder(t *testing.T) {
	// The kernel wants the address reversed (little-endian octets), so the
	// first textual octet ends up last in the wire representation.
	b, err := parseAddress("01:02:03:04:05:06")
	if err != nil {
		t.Fatal(err)
	}
	want := [6]byte{0x06, 0x05, 0x04, 0x03, 0x02, 0x01}
	if b != want {
		t.Errorf("parseAddress byte order = % x, want % x", b, want)
	}
}
