package vm

import (
	"math"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Value display
// ---------------------------------------------------------------------------

// Show renders a value in source notation on a single line. Nested
// arrays appear as bracketed rows; character lists appear as strings.
func Show(v Value) string {
	switch a := v.(type) {
	case *Array[float64]:
		return showArr(a, fmtNum)
	case *Array[byte]:
		return showArr(a, func(b byte) string { return strconv.Itoa(int(b)) })
	case *Array[rune]:
		return showChars(a.elems(), a.Shape())
	case *Array[Boxed]:
		return showArr(a, func(b Boxed) string { return "□" + Show(b.V) })
	case *FnValue:
		return a.String()
	}
	return "?"
}

// fmtNum writes a number the way the tokenizer reads it: high minus
// for negatives and named constants where they are exact.
func fmtNum(x float64) string {
	switch {
	case math.IsNaN(x):
		return "NaN"
	case math.IsInf(x, 1):
		return "∞"
	case math.IsInf(x, -1):
		return "¯∞"
	}
	neg := x < 0
	abs := math.Abs(x)
	var s string
	switch abs {
	case math.Pi:
		s = "π"
	case 2 * math.Pi:
		s = "τ"
	case math.Pi / 2:
		s = "η"
	default:
		s = strconv.FormatFloat(abs, 'g', -1, 64)
	}
	if neg {
		return "¯" + s
	}
	return s
}

func fmtChar(r rune) string {
	switch r {
	case '\n':
		return `@\n`
	case '\t':
		return `@\t`
	case '\r':
		return `@\r`
	case 0:
		return `@\0`
	case '\\':
		return `@\\`
	}
	return "@" + string(r)
}

func quoteChars(rs []rune) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range rs {
		switch r {
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		case 0:
			sb.WriteString(`\0`)
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

func showArr[T Elem](a *Array[T], f func(T) string) string {
	return showSub(a.elems(), a.Shape(), f)
}

func showSub[T Elem](elems []T, shape Shape, f func(T) string) string {
	if len(shape) == 0 {
		return f(elems[0])
	}
	stride := Shape(shape[1:]).Elements()
	parts := make([]string, shape[0])
	for i := range parts {
		parts[i] = showSub(elems[i*stride:(i+1)*stride], shape[1:], f)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func showChars(elems []rune, shape Shape) string {
	switch len(shape) {
	case 0:
		return fmtChar(elems[0])
	case 1:
		return quoteChars(elems)
	}
	stride := Shape(shape[1:]).Elements()
	parts := make([]string, shape[0])
	for i := range parts {
		parts[i] = showChars(elems[i*stride:(i+1)*stride], shape[1:])
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// ---------------------------------------------------------------------------
// Grid display
// ---------------------------------------------------------------------------

// Grid renders a value for terminal output: one line per row with
// aligned columns, higher ranks as blank-line-separated blocks.
// Scalars and lists render as Show does.
func Grid(v Value) string {
	if v.Rank() <= 1 || v.FlatLen() == 0 {
		return Show(v)
	}
	var cells []string
	var shape Shape
	switch a := v.(type) {
	case *Array[float64]:
		cells, shape = gridCells(a.elems(), a.Shape(), fmtNum)
	case *Array[byte]:
		cells, shape = gridCells(a.elems(), a.Shape(), func(b byte) string { return strconv.Itoa(int(b)) })
	case *Array[rune]:
		// Character rows read best as whole strings, one per line.
		rl := a.Shape()[a.Rank()-1]
		rs := a.elems()
		cells = make([]string, len(rs)/max(rl, 1))
		for i := range cells {
			cells[i] = quoteChars(rs[i*rl : (i+1)*rl])
		}
		shape = append(Shape(a.Shape()[:a.Rank()-1]).Clone(), 1)
	case *Array[Boxed]:
		cells, shape = gridCells(a.elems(), a.Shape(), func(b Boxed) string { return "□" + Show(b.V) })
	default:
		return Show(v)
	}

	lastDim := 1
	if len(shape) > 0 {
		lastDim = shape[len(shape)-1]
	}
	widths := make([]int, lastDim)
	for i, c := range cells {
		col := i % lastDim
		if len([]rune(c)) > widths[col] {
			widths[col] = len([]rune(c))
		}
	}
	lines := gridLines(cells, shape, widths)
	for i := range lines {
		switch {
		case i == 0:
			lines[i] = "[" + lines[i]
		case lines[i] == "":
		default:
			lines[i] = " " + lines[i]
		}
	}
	lines[len(lines)-1] += "]"
	return strings.Join(lines, "\n")
}

func gridCells[T Elem](elems []T, shape Shape, f func(T) string) ([]string, Shape) {
	cells := make([]string, len(elems))
	for i, e := range elems {
		cells[i] = f(e)
	}
	return cells, shape
}

func gridLines(cells []string, shape Shape, widths []int) []string {
	if len(shape) <= 1 {
		n := 1
		if len(shape) == 1 {
			n = shape[0]
		}
		row := make([]string, n)
		for i := range row {
			w := widths[i%len(widths)]
			row[i] = strings.Repeat(" ", w-len([]rune(cells[i]))) + cells[i]
		}
		return []string{strings.Join(row, " ")}
	}
	stride := Shape(shape[1:]).Elements()
	var lines []string
	for i := 0; i < shape[0]; i++ {
		if i > 0 && len(shape) > 2 {
			lines = append(lines, "")
		}
		lines = append(lines, gridLines(cells[i*stride:(i+1)*stride], shape[1:], widths)...)
	}
	return lines
}
