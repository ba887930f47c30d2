package codegen

import "fmt"

// Label naming follows the teacher's v_/s_ mangling convention
// (lang/ysem, lang/ygen use the same v_/s_ prefixes for storage and
// subroutine labels) so a human reading the emitted assembly can tell a
// variable reference from a call target at a glance.

// varLabel returns the storage label for a variable. owner is the
// enclosing subroutine's name, or "" for a file-scope global; Cowgol
// locals are name-unique only within their own subroutine, so the owner
// is folded into the label to keep nested subroutines' same-named
// locals from colliding in the flat assembly namespace.
func varLabel(owner, name string) string {
	if owner == "" {
		return "v_" + name
	}
	return fmt.Sprintf("v_%s_%s", owner, name)
}

// subLabel returns the call target for a subroutine.
func subLabel(name string) string {
	return "s_" + name
}

// paramLabel and returnLabel give each parameter and return value its
// own fixed static slot, named distinctly from ordinary locals so the
// calling convention's "store args, call, read returns" sequence reads
// unambiguously in the emitted listing.
func paramLabel(sub, name string) string {
	return fmt.Sprintf("p_%s_%s", sub, name)
}

func returnLabel(sub, name string) string {
	return fmt.Sprintf("r_%s_%s", sub, name)
}
