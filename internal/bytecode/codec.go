package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Magic identifies a Plotnik bytecode file; Version is bumped whenever the
// on-disk layout below changes incompatibly.
const (
	Magic   uint32 = 0x504c544b // "PLTK"
	Version uint32 = 1

	flagLinked uint32 = 1 << 0
)

// Encode serializes m into the on-disk format: a fixed header (magic,
// version, flags, then the string, type, step, kind-symbol, field-symbol
// and entrypoint counts), followed by the string, type, step, kind-symbol,
// field-symbol and entrypoint tables in that order. Each step row carries
// its own negated fields, pre/post effects and successors inline; there is
// no separate successor or effect table, and no count for either in the
// header. No third-party codec in the pack's stack targets a
// bespoke instruction encoding like this one, so it is written directly
// with encoding/binary rather than adopting a general-purpose serializer
// whose framing would obscure the very table layout this format exists to
// pin down.
func (m *Module) Encode() ([]byte, error) {
	var buf bytes.Buffer

	writeU32(&buf, Magic)
	writeU32(&buf, Version)
	var flags uint32
	if m.Linked {
		flags |= flagLinked
	}
	writeU32(&buf, flags)

	writeU32(&buf, uint32(len(m.Strings)))
	writeU32(&buf, uint32(len(m.Types)))
	writeU32(&buf, uint32(len(m.Steps)))
	writeU32(&buf, uint32(len(m.KindSymbols)))
	writeU32(&buf, uint32(len(m.FieldSymbols)))
	writeU32(&buf, uint32(len(m.Entrypoints)))

	for _, s := range m.Strings {
		writeString(&buf, s)
	}

	for _, ty := range m.Types {
		writeU32(&buf, uint32(ty.Kind))
		writeString(&buf, ty.Primitive)
		writeString(&buf, ty.NominalName)
		writeI32(&buf, int32(ty.NominalID))
		writeU32(&buf, uint32(len(ty.Members)))
		for _, mm := range ty.Members {
			writeString(&buf, mm.Name)
			writeI32(&buf, int32(mm.Shape))
			writeI32(&buf, int32(mm.Type))
		}
		writeU32(&buf, uint32(len(ty.Variants)))
		for _, v := range ty.Variants {
			writeString(&buf, v.Name)
			writeI32(&buf, int32(v.Payload))
		}
	}

	for _, st := range m.Steps {
		writeI32(&buf, int32(st.Op))
		writeI32(&buf, int32(st.Nav))
		writeI32(&buf, int32(st.Kind))
		writeI32(&buf, int32(st.Field))
		writeI32(&buf, int32(st.UpCount))
		writeI32(&buf, int32(st.RefID))
		writeI32(&buf, int32(st.Target))
		writeI32(&buf, int32(st.ReturnTo))

		writeU32(&buf, uint32(len(st.NegatedFields)))
		for _, f := range st.NegatedFields {
			writeI32(&buf, int32(f))
		}
		writeEffects(&buf, st.Pre)
		writeEffects(&buf, st.Post)
		writeU32(&buf, uint32(len(st.Successors)))
		for _, s := range st.Successors {
			writeI32(&buf, int32(s))
		}
	}

	for _, id := range m.KindSymbols {
		writeI32(&buf, int32(id))
	}
	for _, id := range m.FieldSymbols {
		writeI32(&buf, int32(id))
	}

	for _, e := range m.Entrypoints {
		writeString(&buf, e.Name)
		writeI32(&buf, int32(e.Step))
		writeI32(&buf, int32(e.Type))
	}

	return buf.Bytes(), nil
}

func writeEffects(buf *bytes.Buffer, effs []Effect) {
	writeU32(buf, uint32(len(effs)))
	for _, e := range effs {
		writeI32(buf, int32(e.Op))
		writeI32(buf, int32(e.Arg))
	}
}

// Decode parses the format Encode produces. It performs header validation
// (magic, version) but not the full semantic checks — callers that intend
// to execute a module should call Validate afterward.
func Decode(data []byte) (*Module, error) {
	r := bytes.NewReader(data)

	magic, err := readU32(r)
	if err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, fmt.Errorf("bytecode: bad magic %#x", magic)
	}
	version, err := readU32(r)
	if err != nil {
		return nil, err
	}
	if version != Version {
		return nil, fmt.Errorf("bytecode: unsupported version %d", version)
	}
	flags, err := readU32(r)
	if err != nil {
		return nil, err
	}

	counts := make([]uint32, 6)
	for i := range counts {
		if counts[i], err = readU32(r); err != nil {
			return nil, err
		}
	}
	nStrings, nTypes, nSteps, nKindSyms, nFieldSyms, nEntry := counts[0], counts[1], counts[2], counts[3], counts[4], counts[5]

	m := &Module{Version: int(version), Linked: flags&flagLinked != 0}

	m.Strings = make([]string, nStrings)
	for i := range m.Strings {
		if m.Strings[i], err = readString(r); err != nil {
			return nil, err
		}
	}

	m.Types = make([]TypeEntry, nTypes)
	for i := range m.Types {
		ty := &m.Types[i]
		kind, err := readU32(r)
		if err != nil {
			return nil, err
		}
		ty.Kind = TypeKind(kind)
		if ty.Primitive, err = readString(r); err != nil {
			return nil, err
		}
		if ty.NominalName, err = readString(r); err != nil {
			return nil, err
		}
		nid, err := readI32(r)
		if err != nil {
			return nil, err
		}
		ty.NominalID = int(nid)

		nMembers, err := readU32(r)
		if err != nil {
			return nil, err
		}
		ty.Members = make([]Member, nMembers)
		for j := range ty.Members {
			if ty.Members[j].Name, err = readString(r); err != nil {
				return nil, err
			}
			shape, err := readI32(r)
			if err != nil {
				return nil, err
			}
			ty.Members[j].Shape = int(shape)
			typ, err := readI32(r)
			if err != nil {
				return nil, err
			}
			ty.Members[j].Type = int(typ)
		}

		nVariants, err := readU32(r)
		if err != nil {
			return nil, err
		}
		ty.Variants = make([]Variant, nVariants)
		for j := range ty.Variants {
			if ty.Variants[j].Name, err = readString(r); err != nil {
				return nil, err
			}
			payload, err := readI32(r)
			if err != nil {
				return nil, err
			}
			ty.Variants[j].Payload = int(payload)
		}
	}

	m.Steps = make([]Step, nSteps)
	for i := range m.Steps {
		st := &m.Steps[i]
		fields := make([]int32, 8)
		for j := range fields {
			v, err := readI32(r)
			if err != nil {
				return nil, err
			}
			fields[j] = v
		}
		st.Op = Op(fields[0])
		st.Nav = Nav(fields[1])
		st.Kind = int(fields[2])
		st.Field = int(fields[3])
		st.UpCount = int(fields[4])
		st.RefID = int(fields[5])
		st.Target = int(fields[6])
		st.ReturnTo = int(fields[7])

		nNeg, err := readU32(r)
		if err != nil {
			return nil, err
		}
		st.NegatedFields = make([]int, nNeg)
		for j := range st.NegatedFields {
			v, err := readI32(r)
			if err != nil {
				return nil, err
			}
			st.NegatedFields[j] = int(v)
		}

		if st.Pre, err = readEffects(r); err != nil {
			return nil, err
		}
		if st.Post, err = readEffects(r); err != nil {
			return nil, err
		}

		nSucc, err := readU32(r)
		if err != nil {
			return nil, err
		}
		st.Successors = make([]int, nSucc)
		for j := range st.Successors {
			v, err := readI32(r)
			if err != nil {
				return nil, err
			}
			st.Successors[j] = int(v)
		}
	}

	m.KindSymbols = make([]int, nKindSyms)
	for i := range m.KindSymbols {
		v, err := readI32(r)
		if err != nil {
			return nil, err
		}
		m.KindSymbols[i] = int(v)
	}
	m.FieldSymbols = make([]int, nFieldSyms)
	for i := range m.FieldSymbols {
		v, err := readI32(r)
		if err != nil {
			return nil, err
		}
		m.FieldSymbols[i] = int(v)
	}

	m.Entrypoints = make([]Entrypoint, nEntry)
	for i := range m.Entrypoints {
		ep := &m.Entrypoints[i]
		if ep.Name, err = readString(r); err != nil {
			return nil, err
		}
		step, err := readI32(r)
		if err != nil {
			return nil, err
		}
		ep.Step = int(step)
		typ, err := readI32(r)
		if err != nil {
			return nil, err
		}
		ep.Type = int(typ)
	}

	return m, nil
}

func readEffects(r *bytes.Reader) ([]Effect, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	out := make([]Effect, n)
	for i := range out {
		op, err := readI32(r)
		if err != nil {
			return nil, err
		}
		arg, err := readI32(r)
		if err != nil {
			return nil, err
		}
		out[i] = Effect{Op: EffectOp(op), Arg: int(arg)}
	}
	return out, nil
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeI32(buf *bytes.Buffer, v int32) { writeU32(buf, uint32(v)) }

func writeString(buf *bytes.Buffer, s string) {
	writeU32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func readU32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := r.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readI32(r *bytes.Reader) (int32, error) {
	v, err := readU32(r)
	return int32(v), err
}

func readString(r *bytes.Reader) (string, error) {
	n, err := readU32(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if n > 0 {
		if _, err := r.Read(b); err != nil {
			return "", err
		}
	}
	return string(b), nil
}
