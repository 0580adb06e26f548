package materialize

import (
	"github.com/termfx/plotnik/internal/bytecode"
	"github.com/termfx/plotnik/internal/types"
)

// FieldSchema describes one struct member in a Schema's Fields list.
type FieldSchema struct {
	Name  string `json:"name"`
	Shape string `json:"shape"`
	Type  Schema `json:"type"`
}

// VariantSchema describes one tagged-union arm in a Schema's Variants list.
type VariantSchema struct {
	Name    string `json:"name"`
	Payload Schema `json:"payload"`
}

// Schema is a JSON-serializable description of one module type table
// entry, sufficient to generate a static-language type declaration: a
// primitive name, a struct's field list, a union's variant list, or a
// named reference to an already-described nominal type.
type Schema struct {
	Kind      string          `json:"kind"`
	Primitive string          `json:"primitive,omitempty"`
	Fields    []FieldSchema   `json:"fields,omitempty"`
	Variants  []VariantSchema `json:"variants,omitempty"`
	Ref       string          `json:"ref,omitempty"`
}

// TypeSchema describes the type named by typeID in m's type table. Nominal
// types inline their target the first time they're reached; any later visit
// to the same nominal type within one call (a recursive def reaching itself,
// or a second member of that type elsewhere) stops and reports
// {"kind":"ref","ref":name} instead, so recursion never inlines forever — the
// simpler of the two documented options for recursive schema export,
// deferring a proper $ref-linked form until a consumer needs one.
func TypeSchema(m *bytecode.Module, typeID int) Schema {
	return describeType(m, typeID, map[int]bool{})
}

func describeType(m *bytecode.Module, id int, seen map[int]bool) Schema {
	if id < 0 || id >= len(m.Types) {
		return Schema{Kind: "unknown"}
	}
	ty := &m.Types[id]

	switch ty.Kind {
	case bytecode.TypePrimitive:
		return Schema{Kind: "primitive", Primitive: ty.Primitive}

	case bytecode.TypeStruct:
		fields := make([]FieldSchema, len(ty.Members))
		for i, mm := range ty.Members {
			fields[i] = FieldSchema{
				Name:  mm.Name,
				Shape: shapeName(mm.Shape),
				Type:  describeType(m, mm.Type, seen),
			}
		}
		return Schema{Kind: "struct", Fields: fields}

	case bytecode.TypeUnion:
		variants := make([]VariantSchema, len(ty.Variants))
		for i, v := range ty.Variants {
			variants[i] = VariantSchema{Name: v.Name, Payload: describeType(m, v.Payload, seen)}
		}
		return Schema{Kind: "union", Variants: variants}

	case bytecode.TypeNominal:
		if seen[id] {
			return Schema{Kind: "ref", Ref: ty.NominalName}
		}
		seen[id] = true
		inner := describeType(m, ty.NominalID, seen)
		inner.Ref = ty.NominalName
		return inner

	default:
		return Schema{Kind: "unknown"}
	}
}

func shapeName(s int) string {
	switch types.Shape(s) {
	case types.One:
		return "one"
	case types.Optional:
		return "optional"
	case types.Many:
		return "many"
	case types.Many1:
		return "many1"
	default:
		return "unknown"
	}
}
