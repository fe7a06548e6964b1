package geom

import (
	"math"
	"strconv"
	"strings"
)

// number of numeric arguments consumed per repetition of each SVG path command.
var commandArity = map[byte]int{
	'M': 2, 'L': 2, 'H': 1, 'V': 1,
	'C': 6, 'S': 4, 'Q': 4, 'T': 2,
	'A': 7, 'Z': 0,
}

// PathToPoints parses the move/line commands of an SVG style path string into
// a point list in command order. Relative forms (m, l) are resolved against
// the current point. Curve, arc, horizontal/vertical and close commands are
// skipped without emitting points, although they still advance the current
// point so later relative commands land where a renderer would put them.
func PathToPoints(d string) []Point {
	toks := tokenize(d)
	var (
		pts        []Point
		cur, start Point
		cmd        byte
	)

	for i := 0; i < len(toks); {
		if toks[i].cmd != 0 {
			cmd = toks[i].cmd
			i++
			upper := cmd &^ 0x20
			if upper == 'Z' {
				cur = start
			}
			continue
		}
		if cmd == 0 {
			// numbers before any command
			i++
			continue
		}

		upper := cmd &^ 0x20
		relative := cmd != upper
		arity, ok := commandArity[upper]
		if !ok || arity == 0 {
			i++
			continue
		}
		args, next := collectNumbers(toks, i, arity)
		if len(args) < arity {
			break
		}
		i = next

		switch upper {
		case 'M', 'L':
			p := Pt(args[0], args[1])
			if relative {
				p = cur.Add(p)
			}
			pts = append(pts, p)
			cur = p
			if upper == 'M' {
				start = p
				// further coordinate pairs after a move are implicit line-tos
				if relative {
					cmd = 'l'
				} else {
					cmd = 'L'
				}
			}
		case 'H':
			if relative {
				cur.X += args[0]
			} else {
				cur.X = args[0]
			}
		case 'V':
			if relative {
				cur.Y += args[0]
			} else {
				cur.Y = args[0]
			}
		default:
			end := Pt(args[arity-2], args[arity-1])
			if relative {
				end = cur.Add(end)
			}
			cur = end
		}
	}
	return pts
}

// PointsToPath formats pts as "M x y L x y ...". It is the inverse of
// PathToPoints for paths built purely from absolute move/line commands.
func PointsToPath(pts []Point) string {
	if len(pts) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, p := range pts {
		if i == 0 {
			sb.WriteString("M ")
		} else {
			sb.WriteString(" L ")
		}
		sb.WriteString(formatFloat(p.X))
		sb.WriteByte(' ')
		sb.WriteString(formatFloat(p.Y))
	}
	return sb.String()
}

// Interpolate returns a, b and evenly spaced points between them such that no
// two consecutive points are farther apart than maxSpacing. When the distance
// is already within maxSpacing (or maxSpacing is not positive) it returns
// exactly [a, b].
func Interpolate(a, b Point, maxSpacing float64) []Point {
	d := a.Distance(b)
	if maxSpacing <= 0 || d <= maxSpacing {
		return []Point{a, b}
	}
	n := int(math.Ceil(d / maxSpacing))
	out := make([]Point, 0, n+1)
	for i := 0; i < n; i++ {
		out = append(out, a.Lerp(b, float64(i)/float64(n)))
	}
	return append(out, b)
}

// Densify interpolates every consecutive pair of pts with maxSpacing and
// joins the results without duplicating shared endpoints.
func Densify(pts []Point, maxSpacing float64) []Point {
	if len(pts) < 2 {
		return append([]Point(nil), pts...)
	}
	out := []Point{pts[0]}
	for i := 1; i < len(pts); i++ {
		seg := Interpolate(pts[i-1], pts[i], maxSpacing)
		out = append(out, seg[1:]...)
	}
	return out
}

// Length returns the total polyline length of pts.
func Length(pts []Point) float64 {
	var total float64
	for i := 1; i < len(pts); i++ {
		total += pts[i-1].Distance(pts[i])
	}
	return total
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type token struct {
	cmd byte
	num float64
}

func collectNumbers(toks []token, i, n int) ([]float64, int) {
	args := make([]float64, 0, n)
	for i < len(toks) && len(args) < n && toks[i].cmd == 0 {
		args = append(args, toks[i].num)
		i++
	}
	return args, i
}

// tokenize splits a path string into command letters and numbers. Separators
// are whitespace and commas; a sign or a second decimal point also starts a
// new number, so compact forms like "M0-5.5.5" parse as SVG renderers do.
func tokenize(d string) []token {
	var toks []token
	for i := 0; i < len(d); {
		c := d[i]
		switch {
		case c == ' ' || c == ',' || c == '\t' || c == '\n' || c == '\r':
			i++
		case isCommand(c):
			toks = append(toks, token{cmd: c})
			i++
		case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
			j := scanNumber(d, i)
			if j == i {
				i++
				continue
			}
			if v, err := strconv.ParseFloat(d[i:j], 64); err == nil {
				toks = append(toks, token{num: v})
			}
			i = j
		default:
			i++
		}
	}
	return toks
}

func isCommand(c byte) bool {
	_, ok := commandArity[c&^0x20]
	return ok && ((c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z'))
}

func scanNumber(d string, i int) int {
	j := i
	if j < len(d) && (d[j] == '-' || d[j] == '+') {
		j++
	}
	sawDot := false
	sawDigit := false
	for j < len(d) {
		c := d[j]
		if c >= '0' && c <= '9' {
			sawDigit = true
			j++
		} else if c == '.' && !sawDot {
			sawDot = true
			j++
		} else {
			break
		}
	}
	if !sawDigit {
		return i
	}
	if j < len(d) && (d[j] == 'e' || d[j] == 'E') {
		k := j + 1
		if k < len(d) && (d[k] == '-' || d[k] == '+') {
			k++
		}
		if k < len(d) && d[k] >= '0' && d[k] <= '9' {
			for k < len(d) && d[k] >= '0' && d[k] <= '9' {
				k++
			}
			j = k
		}
	}
	return j
}
