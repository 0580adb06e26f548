package bytecode

import "fmt"

// Validate performs the load-time checks a caller must run before handing
// a module to the VM: magic/version are already checked by Decode, so this
// covers table-bounds checks, linked-flag/operand-form consistency, and
// entrypoint step ids being in range.
func (m *Module) Validate() error {
	nSteps := len(m.Steps)
	nTypes := len(m.Types)
	nStrings := len(m.Strings)

	for i, st := range m.Steps {
		if st.Op == OpMatch {
			if m.Linked {
				// Linked operands are grammar ids, unchecked here (the
				// caller's grammar.Table is the source of truth); just
				// reject negative ids, which neither form ever produces.
				if st.Kind < 0 || st.Field < 0 {
					return fmt.Errorf("bytecode: step %d has negative operand", i)
				}
			} else if st.Kind >= nStrings || st.Field >= nStrings {
				return fmt.Errorf("bytecode: step %d string operand out of range", i)
			}
			for _, s := range st.Successors {
				if s < 0 || s >= nSteps {
					return fmt.Errorf("bytecode: step %d successor %d out of range", i, s)
				}
			}
		}
		if st.Op == OpCall {
			if st.Target < 0 || st.Target >= nSteps {
				return fmt.Errorf("bytecode: step %d call target out of range", i)
			}
			if st.ReturnTo < 0 || st.ReturnTo >= nSteps {
				return fmt.Errorf("bytecode: step %d return address out of range", i)
			}
		}
	}

	if m.Linked {
		if len(m.KindSymbols) == 0 && hasKindOperand(m) {
			return fmt.Errorf("bytecode: linked module missing kind symbol table")
		}
	} else if len(m.KindSymbols) != 0 || len(m.FieldSymbols) != 0 {
		return fmt.Errorf("bytecode: unlinked module must not carry symbol tables")
	}

	for _, ty := range m.Types {
		for _, mm := range ty.Members {
			if mm.Type < 0 || mm.Type >= nTypes {
				return fmt.Errorf("bytecode: type member %q refers to out-of-range type %d", mm.Name, mm.Type)
			}
		}
		for _, v := range ty.Variants {
			if v.Payload < 0 || v.Payload >= nTypes {
				return fmt.Errorf("bytecode: variant %q refers to out-of-range type %d", v.Name, v.Payload)
			}
		}
	}

	for _, e := range m.Entrypoints {
		if e.Step < 0 || e.Step >= nSteps {
			return fmt.Errorf("bytecode: entrypoint %q step %d out of range", e.Name, e.Step)
		}
		if e.Type < 0 || e.Type >= nTypes {
			return fmt.Errorf("bytecode: entrypoint %q type %d out of range", e.Name, e.Type)
		}
	}

	return nil
}

func hasKindOperand(m *Module) bool {
	for _, st := range m.Steps {
		if st.Op == OpMatch && (st.Kind != 0 || st.Field != 0) {
			return true
		}
	}
	return false
}

// ExecutableOrErr additionally requires the module be linked, the form the
// VM actually accepts.
func (m *Module) ExecutableOrErr() error {
	if err := m.Validate(); err != nil {
		return err
	}
	if !m.Linked {
		return fmt.Errorf("bytecode: cannot execute an unlinked module")
	}
	return nil
}
