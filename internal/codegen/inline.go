package codegen

// shouldInline applies the inlining heuristic: a subroutine is worth
// inlining at its call sites when replicating its body at every one of
// its N call sites costs less code than keeping one copy plus a
// CALL/RET at each site (3 bytes for the CALL, 1 for the RET divided
// across sites rounds to the "+1" term).
//
//	N * bodySize < bodySize + 3*N + 1
func shouldInline(bodySize, callSites int) bool {
	if callSites <= 0 {
		return false
	}
	return callSites*bodySize < bodySize+3*callSites+1
}
