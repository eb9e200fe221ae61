// Package protocol converts gimbal step commands to the controller wire
// format and vice-versa.
//
// Wire format (host -> STM32), one command per line:
//
//	{axis}{sign}{steps}\n
//
// axis is "x" or "y", the sign is always explicit ("+" for zero and positive
// deltas), steps is a decimal pulse count. Examples: "x+12", "y-7".
//
// Encode and Parse form a bijection on the line body; the "\n" terminator
// belongs to the link layer and is appended by Device.WriteLine on send and
// stripped by Parse (via trimming) on receive.
package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"lasergimbal/internal/model"
)

// Encode renders a Command as a wire line, without the trailing newline.
// The transport appends the line terminator on write.
func Encode(cmd model.Command) string {
	sign := "+"
	if cmd.Delta < 0 {
		sign = ""
	}
	return fmt.Sprintf("%s%s%d", cmd.Axis, sign, cmd.Delta)
}

// Parse decodes a wire line back into a Command. Returns an error on any
// deviation from the documented grammar.
func Parse(line string) (model.Command, error) {
	s := strings.TrimSpace(line)
	if len(s) < 3 {
		return model.Command{}, fmt.Errorf("command too short: %q", line)
	}

	var axis model.Axis
	switch s[0] {
	case 'x':
		axis = model.AxisX
	case 'y':
		axis = model.AxisY
	default:
		return model.Command{}, fmt.Errorf("unknown axis %q in %q", s[0], line)
	}

	if s[1] != '+' && s[1] != '-' {
		return model.Command{}, fmt.Errorf("missing sign in %q", line)
	}
	delta, err := strconv.Atoi(s[1:])
	if err != nil {
		return model.Command{}, fmt.Errorf("invalid step count in %q: %w", line, err)
	}
	return model.Command{Axis: axis, Delta: delta}, nil
}
