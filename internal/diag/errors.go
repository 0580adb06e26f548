package diag

import "errors"

// Sentinel errors for programmatic checking with errors.Is, mirroring the
// teacher's model.Err* convention.
var (
	ErrUnconditionalRecursion = errors.New("unconditional recursion")
	ErrUnresolvedName         = errors.New("unresolved name")
	ErrDuplicateDef           = errors.New("duplicate definition")
	ErrNoEntryPoint           = errors.New("missing entry point")
	ErrUnknownGrammarKind     = errors.New("unknown grammar kind")
	ErrUnknownGrammarField    = errors.New("unknown grammar field")
	ErrShapeMismatch          = errors.New("shape mismatch across alternation branches")
	ErrMixedAlternation       = errors.New("mixed tagged and untagged alternation branches")
	ErrFieldIsSequence        = errors.New("field value must be singular")
	ErrTypePinConflict        = errors.New("type pin conflict")

	ErrNoMatch            = errors.New("no match")
	ErrFuelExhausted      = errors.New("execution fuel exhausted")
	ErrRecursionExhausted = errors.New("recursion fuel exhausted")
	ErrUnlinkedBytecode   = errors.New("bytecode module is unlinked")
	ErrFrameMismatch      = errors.New("call/return frame mismatch")
	ErrCancelled          = errors.New("execution cancelled")

	ErrMalformedLog = errors.New("effect log inconsistent with module type table")
)
