package protocol

import (
	"testing"

	"lasergimbal/internal/model"
)

func TestEncode(t *testing.T) {
	cases := []struct {
		cmd  model.Command
		want string
	}{
		{model.Command{Axis: model.AxisX, Delta: -7}, "x-7"},
		{model.Command{Axis: model.AxisX, Delta: 12}, "x+12"},
		{model.Command{Axis: model.AxisY, Delta: 0}, "y+0"},
		{model.Command{Axis: model.AxisY, Delta: -120}, "y-120"},
	}
	for _, c := range cases {
		if got := Encode(c.cmd); got != c.want {
			t.Errorf("Encode(%v) = %q, want %q", c.cmd, got, c.want)
		}
	}
}

func TestParseRoundTrip(t *testing.T) {
	cmds := []model.Command{
		{Axis: model.AxisX, Delta: -7},
		{Axis: model.AxisX, Delta: 0},
		{Axis: model.AxisY, Delta: 15},
		{Axis: model.AxisY, Delta: -1},
	}
	for _, cmd := range cmds {
		got, err := Parse(Encode(cmd) + "\n")
		if err != nil {
			t.Fatalf("Parse(Encode(%v)): %v", cmd, err)
		}
		if got != cmd {
			t.Errorf("round trip %v -> %v", cmd, got)
		}
	}
}

func TestParseInvalid(t *testing.T) {
	lines := []string{"", "x", "z+5", "x5", "x+", "x+abc", "y-1.5"}
	for _, l := range lines {
		if _, err := Parse(l); err == nil {
			t.Errorf("Parse(%q) expected error", l)
		}
	}
}
