package analysis

import (
	"github.com/termfx/plotnik/internal/ast"
	"github.com/termfx/plotnik/internal/cst"
	"github.com/termfx/plotnik/internal/diag"
	"github.com/termfx/plotnik/internal/resolve"
)

// CheckShapes walks every definition's body and reports two structural
// diagnostics: mixed tagged/untagged alternation branches, and a field
// whose value is a raw Seq (which must be singular).
func CheckShapes(t *resolve.Table, bag *diag.Bag) {
	for _, d := range t.Defs {
		walkShape(d.Body(), bag)
	}
}

func walkShape(e ast.Expr, bag *diag.Bag) {
	switch v := e.(type) {
	case ast.Alt:
		checkAlternationMode(v, bag)
		for _, b := range v.Branches() {
			walkShape(b.Expr(), bag)
		}
	case ast.Tree:
		for _, c := range v.Children() {
			walkShape(c, bag)
		}
	case ast.Seq:
		for _, c := range v.Children() {
			walkShape(c, bag)
		}
	case ast.Quantifier:
		walkShape(v.Inner(), bag)
	case ast.Capture:
		if !v.Suppressed() {
			walkShape(v.Inner(), bag)
		}
	case ast.Anchor:
		walkShape(v.Inner(), bag)
	case ast.Field:
		if fv := v.Value(); fv.Node().Kind == cst.KSeq {
			bag.Addf(diag.StageType, diag.SeverityError, v.Span(),
				"field %q value must be singular, not a sequence", v.Name())
		}
		walkShape(v.Value(), bag)
	}
}

// checkAlternationMode reports mixed tagged/untagged branches within one
// Alt. A branch is "tagged" iff it has a non-empty Tag().
func checkAlternationMode(a ast.Alt, bag *diag.Bag) {
	branches := a.Branches()
	if len(branches) == 0 {
		return
	}
	wantTagged := branches[0].Tag() != ""
	for _, b := range branches[1:] {
		if (b.Tag() != "") != wantTagged {
			bag.Addf(diag.StageType, diag.SeverityError, a.Span(),
				"alternation mixes tagged and untagged branches")
			return
		}
	}
}
