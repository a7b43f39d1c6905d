package variant

import (
	"fmt"
	"strconv"

	"github.com/nimbusfs/synccore/pkg/log"
)

// Kind identifies which alternative of the tagged union a Variant holds.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInteger
	KindText
	KindReal
	KindNull
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindText:
		return "text"
	case KindReal:
		return "real"
	case KindNull:
		return "null"
	default:
		return "invalid"
	}
}

// Variant is a single column value from the metadata store: exactly one of
// an integer, a string, a floating-point real, or null.
type Variant struct {
	kind Kind
	num  int64
	str  string
	real float64
}

func Invalid() Variant           { return Variant{kind: KindInvalid} }
func Null() Variant              { return Variant{kind: KindNull} }
func Integer(v int64) Variant    { return Variant{kind: KindInteger, num: v} }
func Text(v string) Variant      { return Variant{kind: KindText, str: v} }
func Real(v float64) Variant     { return Variant{kind: KindReal, real: v} }

// Kind reports which alternative v holds.
func (v Variant) Kind() Kind { return v.kind }

// IsNull reports whether v holds the null alternative.
func (v Variant) IsNull() bool { return v.kind == KindNull }

func mismatch(col int, want Kind, got Kind) {
	log.Errorf(fmt.Sprintf("column %d: expected %s, got %s", col, want, got), fmt.Errorf("variant type mismatch"))
}

// ExpectNumber returns v's integer value, or 0 logged as an error if v does
// not hold an integer.
func (v Variant) ExpectNumber(col int) int64 {
	if v.kind != KindInteger {
		mismatch(col, KindInteger, v.kind)
		return 0
	}
	return v.num
}

// ExpectString returns v's string value, or "" logged as an error if v does
// not hold text.
func (v Variant) ExpectString(col int) string {
	if v.kind != KindText {
		mismatch(col, KindText, v.kind)
		return ""
	}
	return v.str
}

// ExpectLString is ExpectString under a name matching the original length-
// prefixed string accessor; synccore's Variant carries no separate length
// since Go strings already know their own length.
func (v Variant) ExpectLString(col int) string {
	return v.ExpectString(col)
}

// ExpectReal returns v's floating-point value, or 0 logged as an error if v
// does not hold a real.
func (v Variant) ExpectReal(col int) float64 {
	if v.kind != KindReal {
		mismatch(col, KindReal, v.kind)
		return 0
	}
	return v.real
}

// Text renders v as a display string regardless of its kind: numbers and
// reals are stringified, null becomes "".
func (v Variant) Text() string {
	switch v.kind {
	case KindInteger:
		return strconv.FormatInt(v.num, 10)
	case KindText:
		return v.str
	case KindReal:
		return strconv.FormatFloat(v.real, 'g', -1, 64)
	default:
		return ""
	}
}

// Row is an ordered slice of column values, the unit that metastore queries
// read and write.
type Row []Variant

// ExpectNumber returns column i of r as an integer.
func (r Row) ExpectNumber(i int) int64 { return r[i].ExpectNumber(i) }

// ExpectString returns column i of r as text.
func (r Row) ExpectString(i int) string { return r[i].ExpectString(i) }

// ExpectReal returns column i of r as a real.
func (r Row) ExpectReal(i int) float64 { return r[i].ExpectReal(i) }

// RowText is the all-columns-as-text projection of a Row, for callers that
// only want a display view (e.g. a settings table dump).
type RowText []string

// Text renders every column of r through Variant.Text.
func (r Row) Text() RowText {
	out := make(RowText, len(r))
	for i, col := range r {
		out[i] = col.Text()
	}
	return out
}
