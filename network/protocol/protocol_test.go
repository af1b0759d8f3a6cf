package protocol

import "testing"

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want NetworkProtocol
	}{
		{"tcp", NetworkTCP},
		{"TCP4", NetworkTCP4},
		{" tcp6 ", NetworkTCP6},
		{"udp", NetworkUDP},
		{"udp4", NetworkUDP4},
		{"udp6", NetworkUDP6},
		{"unix", NetworkEmpty},
		{"", NetworkEmpty},
	}

	for _, c := range cases {
		if got := Parse(c.in); got != c.want {
			t.Errorf("Parse(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestStringRoundTrip(t *testing.T) {
	for _, n := range []NetworkProtocol{NetworkTCP, NetworkTCP4, NetworkTCP6, NetworkUDP, NetworkUDP4, NetworkUDP6} {
		if got := Parse(n.String()); got != n {
			t.Errorf("round trip failed for %v: got %v", n, got)
		}
	}
}

func TestIsTCPIsUDP(t *testing.T) {
	if !NetworkTCP.IsTCP() || NetworkTCP.IsUDP() {
		t.Error("NetworkTCP classification wrong")
	}
	if !NetworkUDP6.IsUDP() || NetworkUDP6.IsTCP() {
		t.Error("NetworkUDP6 classification wrong")
	}
	if NetworkEmpty.IsValid() {
		t.Error("NetworkEmpty should not be valid")
	}
}
