package schema

import (
	"fmt"
	"strings"
)

// Kind tags the variant held by a Type.
type Kind int

const (
	KindString Kind = iota + 1
	KindInt
	KindFloat
	KindBool
	KindList
	KindSet
	KindTuple
	KindDict
	KindOptional
	KindUnion
	KindLiteral
)

var kindNames = map[Kind]string{
	KindString:   "str",
	KindInt:      "int",
	KindFloat:    "float",
	KindBool:     "bool",
	KindList:     "list",
	KindSet:      "set",
	KindTuple:    "tuple",
	KindDict:     "dict",
	KindOptional: "Optional",
	KindUnion:    "Union",
	KindLiteral:  "Literal",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Type is a parsed type descriptor.
//
// List, Set and Tuple use Elem for the element type (nil means untyped).
// Dict keeps Key and Elem only for display; values are cast as untyped JSON.
// Optional holds its inner type as the single entry of Members, Union holds
// all alternatives, and Literal holds the accepted Values.
type Type struct {
	Kind    Kind
	Elem    *Type
	Key     *Type
	Members []*Type
	Values  []any
}

// Primitive type references for shorthand schemas.
var (
	String = &Type{Kind: KindString}
	Int    = &Type{Kind: KindInt}
	Float  = &Type{Kind: KindFloat}
	Bool   = &Type{Kind: KindBool}
	List   = &Type{Kind: KindList}
	Set    = &Type{Kind: KindSet}
	Tuple  = &Type{Kind: KindTuple}
	Dict   = &Type{Kind: KindDict}
)

// ListOf returns list[elem].
func ListOf(elem *Type) *Type {
	return &Type{Kind: KindList, Elem: scalarOrNil(elem)}
}

// SetOf returns set[elem].
func SetOf(elem *Type) *Type {
	return &Type{Kind: KindSet, Elem: scalarOrNil(elem)}
}

// TupleOf returns tuple[elem].
func TupleOf(elem *Type) *Type {
	return &Type{Kind: KindTuple, Elem: scalarOrNil(elem)}
}

// DictOf returns dict[key, value].
func DictOf(key, value *Type) *Type {
	return &Type{Kind: KindDict, Key: scalarOrNil(key), Elem: scalarOrNil(value)}
}

// OptionalOf returns Optional[inner].
func OptionalOf(inner *Type) *Type {
	return &Type{Kind: KindOptional, Members: []*Type{inner}}
}

// UnionOf returns Union[members...].
func UnionOf(members ...*Type) *Type {
	return &Type{Kind: KindUnion, Members: members}
}

// LiteralOf returns Literal[values...].
func LiteralOf(values ...any) *Type {
	return &Type{Kind: KindLiteral, Values: values}
}

// IsScalar reports whether t is str, int, float or bool.
func (t *Type) IsScalar() bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case KindString, KindInt, KindFloat, KindBool:
		return true
	default:
		return false
	}
}

// String renders t as a type annotation.
func (t *Type) String() string {
	if t == nil {
		return "any"
	}

	switch t.Kind {
	case KindList, KindSet, KindTuple:
		if t.Elem == nil {
			return t.Kind.String()
		}
		return fmt.Sprintf("%s[%s]", t.Kind, t.Elem)
	case KindDict:
		if t.Key == nil && t.Elem == nil {
			return t.Kind.String()
		}
		return fmt.Sprintf("dict[%s, %s]", t.Key, t.Elem)
	case KindOptional, KindUnion:
		parts := make([]string, len(t.Members))
		for i, member := range t.Members {
			parts[i] = member.String()
		}
		return fmt.Sprintf("%s[%s]", t.Kind, strings.Join(parts, ", "))
	case KindLiteral:
		parts := make([]string, len(t.Values))
		for i, value := range t.Values {
			if s, ok := value.(string); ok {
				parts[i] = fmt.Sprintf("%q", s)
			} else {
				parts[i] = fmt.Sprint(value)
			}
		}
		return fmt.Sprintf("Literal[%s]", strings.Join(parts, ", "))
	default:
		return t.Kind.String()
	}
}

func scalarOrNil(t *Type) *Type {
	if t.IsScalar() {
		return t
	}
	return nil
}
