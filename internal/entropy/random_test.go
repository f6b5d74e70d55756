package entropy

import "testing"

func TestNilClientFallsBack(t *testing.T) {
	var c *Client // no API key configured

	if c.Enabled() {
		t.Error("nil client should not report enabled")
	}

	for i := 0; i < 1000; i++ {
		f := c.Float()
		if f < 0 || f >= 1 {
			t.Fatalf("float %v outside [0,1)", f)
		}
	}
}

func TestDieRange(t *testing.T) {
	var c *Client

	for i := 0; i < 1000; i++ {
		roll := c.Die(20)
		if roll < 1 || roll > 20 {
			t.Fatalf("roll %d outside 1..20", roll)
		}
	}

	if got := c.Die(0); got != 1 {
		t.Errorf("degenerate die = %d, want 1", got)
	}
}

func TestNewClientEmptyKey(t *testing.T) {
	if NewClient("") != nil {
		t.Error("empty key should produce nil client")
	}
}
