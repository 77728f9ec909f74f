package domain

import (
	"fmt"
	"io"
	"strings"

	"honnef.co/go/absval/arith"
)

// FormatParams controls the rendering of values.
type FormatParams struct {
	// Signed renders integer constants as signed numbers. Bounds of signed
	// intervals are always rendered signed.
	Signed bool
	// Hex renders integer constants in hexadecimal.
	Hex bool
	// ShowType appends the type to constants and tops, as in 42:i8.
	ShowType bool
}

// Write renders v to w. The rendering is deterministic:
//
//	constant     42, -1, 0x2a, 1.5, -inf, nan
//	interval     [lo, hi]
//	disjunction  {2, 5 | [7, 9]}
//	guard        (cond ? then : else), with _ for a missing branch
//	top          top
//	formal       op(x, y)
//	lattice      lattice<tags>(v), lattice!<tags>(v) once complete
//	shared       shared(v)
func Write(w io.Writer, v Value, p FormatParams) error {
	var sb strings.Builder
	writeValue(&sb, v, p)
	_, err := io.WriteString(w, sb.String())
	return err
}

func writeValue(sb *strings.Builder, v Value, p FormatParams) {
	if v == nil {
		sb.WriteString("_")
		return
	}
	switch v := v.(type) {
	case *Constant:
		writeScalar(sb, v.Scalar, p)
		if p.ShowType {
			fmt.Fprintf(sb, ":%s", v.Type())
		}
	case *Interval:
		q := p
		q.Signed = p.Signed || v.Signed
		q.ShowType = false
		sb.WriteString("[")
		writeValue(sb, v.Min, q)
		sb.WriteString(", ")
		writeValue(sb, v.Max, q)
		sb.WriteString("]")
		if p.ShowType {
			fmt.Fprintf(sb, ":%s", v.Type())
		}
	case *Disjunction:
		sb.WriteString("{")
		for i, c := range v.exacts {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeValue(sb, c, p)
		}
		if len(v.mays) > 0 {
			if len(v.exacts) > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString("| ")
			for i, m := range v.mays {
				if i > 0 {
					sb.WriteString(", ")
				}
				writeValue(sb, m, p)
			}
		}
		sb.WriteString("}")
	case *Guard:
		sb.WriteString("(")
		writeValue(sb, v.Cond, p)
		sb.WriteString(" ? ")
		writeValue(sb, v.Then, p)
		sb.WriteString(" : ")
		writeValue(sb, v.Else, p)
		sb.WriteString(")")
	case *Top:
		sb.WriteString("top")
		if p.ShowType {
			fmt.Fprintf(sb, ":%s", v.typ)
		}
	case *Formal:
		sb.WriteString(v.Op.String())
		sb.WriteString("(")
		for i, a := range v.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeValue(sb, a, p)
		}
		sb.WriteString(")")
	case *Lattice:
		sb.WriteString("lattice")
		if v.Complete {
			sb.WriteString("!")
		}
		fmt.Fprintf(sb, "<%s>(", v.Required)
		writeValue(sb, v.Domain, p)
		sb.WriteString(")")
	case *Shared:
		sb.WriteString("shared(")
		writeValue(sb, v.cell.v, p)
		sb.WriteString(")")
	default:
		panic(fmt.Sprintf("domain: unexpected value %T", v))
	}
}

func writeScalar(sb *strings.Builder, s arith.Scalar, p FormatParams) {
	switch s := s.(type) {
	case arith.BitVec:
		base := 10
		if p.Hex {
			base = 16
		}
		sb.WriteString(s.Text(p.Signed, base))
	case arith.Float:
		sb.WriteString(s.String())
	default:
		panic(fmt.Sprintf("domain: unexpected scalar %T", s))
	}
}

func format(v Value) string {
	var sb strings.Builder
	writeValue(&sb, v, FormatParams{})
	return sb.String()
}

func (c *Constant) String() string    { return format(c) }
func (i *Interval) String() string    { return format(i) }
func (d *Disjunction) String() string { return format(d) }
func (g *Guard) String() string       { return format(g) }
func (t *Top) String() string         { return format(t) }
func (f *Formal) String() string      { return format(f) }
func (l *Lattice) String() string     { return format(l) }
func (s *Shared) String() string      { return format(s) }
