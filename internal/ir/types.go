package ir

import "strings"

// Kind discriminates the type variants of the scripting language.
type Kind int

const (
	// KindUnknown is a placeholder compatible with any concrete type
	// during matching and merging.
	KindUnknown Kind = iota
	KindScalar
	KindString
	KindMatrix
	KindFrame
)

// ScalarKind identifies a concrete scalar value type.
type ScalarKind int

const (
	SI64 ScalarKind = iota
	UI64
	F64
	F32
	Bool
)

func (k ScalarKind) String() string {
	switch k {
	case SI64:
		return "si64"
	case UI64:
		return "ui64"
	case F64:
		return "f64"
	case F32:
		return "f32"
	case Bool:
		return "bool"
	}
	return "invalid"
}

// Type is a tagged variant over the value types of the language:
// Unknown, Scalar(kind), String, Matrix(elem), Frame(cols...).
// Types are immutable after construction and compared structurally.
type Type struct {
	Kind   Kind
	Scalar ScalarKind // valid when Kind == KindScalar
	Elem   *Type      // valid when Kind == KindMatrix
	Cols   []Type     // valid when Kind == KindFrame
}

// Unknown returns the wildcard type.
func Unknown() Type { return Type{Kind: KindUnknown} }

// ScalarOf returns the scalar type of the given kind.
func ScalarOf(k ScalarKind) Type { return Type{Kind: KindScalar, Scalar: k} }

// SI64Type returns the signed 64-bit integer type.
func SI64Type() Type { return ScalarOf(SI64) }

// F64Type returns the 64-bit float type.
func F64Type() Type { return ScalarOf(F64) }

// BoolType returns the boolean type.
func BoolType() Type { return ScalarOf(Bool) }

// StringType returns the string type.
func StringType() Type { return Type{Kind: KindString} }

// MatrixOf returns a matrix type with the given element type.
func MatrixOf(elem Type) Type {
	e := elem
	return Type{Kind: KindMatrix, Elem: &e}
}

// FrameOf returns a frame type with the given column types.
func FrameOf(cols ...Type) Type {
	return Type{Kind: KindFrame, Cols: cols}
}

// IsUnknown reports whether t is the wildcard type.
func (t Type) IsUnknown() bool { return t.Kind == KindUnknown }

// IsData reports whether t is a data object (matrix or frame), as
// opposed to a scalar or string.
func (t Type) IsData() bool { return t.Kind == KindMatrix || t.Kind == KindFrame }

// ElemType returns the element type of a matrix, or Unknown for
// non-matrix types.
func (t Type) ElemType() Type {
	if t.Kind == KindMatrix && t.Elem != nil {
		return *t.Elem
	}
	return Unknown()
}

// Equal reports exact structural equality.
func (t Type) Equal(o Type) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindScalar:
		return t.Scalar == o.Scalar
	case KindMatrix:
		return t.ElemType().Equal(o.ElemType())
	case KindFrame:
		if len(t.Cols) != len(o.Cols) {
			return false
		}
		for i := range t.Cols {
			if !t.Cols[i].Equal(o.Cols[i]) {
				return false
			}
		}
		return true
	}
	return true
}

// EqualUnknownAware reports equality treating Unknown as a wildcard.
// Matrix element types and frame column types are compared
// unknown-aware as well.
func (t Type) EqualUnknownAware(o Type) bool {
	if t.IsUnknown() || o.IsUnknown() {
		return true
	}
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindScalar:
		return t.Scalar == o.Scalar
	case KindMatrix:
		return t.ElemType().EqualUnknownAware(o.ElemType())
	case KindFrame:
		if len(t.Cols) != len(o.Cols) {
			return false
		}
		for i := range t.Cols {
			if !t.Cols[i].EqualUnknownAware(o.Cols[i]) {
				return false
			}
		}
		return true
	}
	return true
}

// String renders the type in source notation, e.g. "si64",
// "matrix<f64>", "frame<[si64, str]>", "?" for Unknown.
func (t Type) String() string {
	switch t.Kind {
	case KindUnknown:
		return "?"
	case KindScalar:
		return t.Scalar.String()
	case KindString:
		return "str"
	case KindMatrix:
		return "matrix<" + t.ElemType().String() + ">"
	case KindFrame:
		var sb strings.Builder
		sb.WriteString("frame<[")
		for i, c := range t.Cols {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(c.String())
		}
		sb.WriteString("]>")
		return sb.String()
	}
	return "invalid"
}
