package minigo

import (
	"fmt"
	"strings"

	"tengen/game"
)

// Render draws a position as text for interactive play and debugging.
func Render(s game.State) string {
	size := s.Size()
	var b strings.Builder
	b.WriteString("   ")
	for col := 0; col < size; col++ {
		fmt.Fprintf(&b, "%2d", col)
	}
	b.WriteByte('\n')
	for row := 0; row < size; row++ {
		fmt.Fprintf(&b, "%2d ", row)
		for col := 0; col < size; col++ {
			switch {
			case s.At(game.PlaneBlack, row, col) > 0:
				b.WriteString(" X")
			case s.At(game.PlaneWhite, row, col) > 0:
				b.WriteString(" O")
			default:
				b.WriteString(" .")
			}
		}
		b.WriteByte('\n')
	}
	mover := "black (X)"
	if s.Turn() == 1 {
		mover = "white (O)"
	}
	if s.Terminal() {
		b.WriteString("game over\n")
	} else {
		fmt.Fprintf(&b, "%s to move\n", mover)
	}
	return b.String()
}
