package domain

import "testing"

// FuzzParseAddress checks that parsing never panics and that every accepted
// input round-trips through String.
func FuzzParseAddress(f *testing.F) {
	f.Add("")
	f.Add("11111111111111111111111111111111")
	f.Add("4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T")
	f.Add("not-an-address")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		a, err := ParseAddress(input)
		if err != nil {
			return
		}
		roundTrip, err := ParseAddress(a.String())
		if err != nil {
			t.Fatalf("accepted address failed round-trip: %v", err)
		}
		if roundTrip != a {
			t.Fatal("round-trip changed address value")
		}
	})
}
