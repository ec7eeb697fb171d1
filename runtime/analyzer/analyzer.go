// Package analyzer implements NAAb's polyglot dependency analyzer
// (spec.md §4.C11): given a statement list, it groups inline-code blocks
// into waves that can run in parallel, respecting read-after-write,
// write-after-write, and write-after-read hazards between them.
//
// This is a line-for-line-equivalent port of
// polyglot_dependency_analyzer.cpp's algorithm, kept structurally close to
// the original so its batch-splitting and greedy-wavefront behaviour is
// easy to audit against the source it was ported from.
package analyzer

// Block is one inline-code statement found in a statement list: either a
// `let name = <<lang ...>>` (Assigned non-empty, Writes = {Assigned}) or a
// bare `<<lang ...>>` expression statement (Assigned empty, Writes empty).
type Block struct {
	StatementIndex int
	Assigned       string
	Reads          []string
	Writes         []string

	// Statement is the interp-owned AST node this block came from, carried
	// through opaquely so callers can map a Block back to its statement
	// without the analyzer depending on the AST package.
	Statement any
}

// Group is a set of blocks that can execute concurrently, plus the indices
// of groups (within the same Analyze call's result) that must complete
// first.
type Group struct {
	Blocks       []Block
	DependsOnIdx []int
}

func hasDataDependency(a, b Block) bool {
	if a.StatementIndex >= b.StatementIndex {
		return false
	}
	for _, w := range a.Writes {
		for _, r := range b.Reads {
			if w == r {
				return true
			}
		}
	}
	return false
}

func hasOutputDependency(a, b Block) bool {
	if a.StatementIndex >= b.StatementIndex {
		return false
	}
	for _, wa := range a.Writes {
		for _, wb := range b.Writes {
			if wa == wb {
				return true
			}
		}
	}
	return false
}

func hasAntiDependency(a, b Block) bool {
	if a.StatementIndex >= b.StatementIndex {
		return false
	}
	for _, r := range a.Reads {
		for _, w := range b.Writes {
			if r == w {
				return true
			}
		}
	}
	return false
}

// hasDependency reports whether b must wait for a: RAW, WAW, or WAR.
func hasDependency(a, b Block) bool {
	return hasDataDependency(a, b) || hasOutputDependency(a, b) || hasAntiDependency(a, b)
}

// buildDependencyGroups runs the greedy wavefront algorithm over a single
// batch of blocks (already source-ordered): repeatedly collect every
// not-yet-processed block whose dependencies are all satisfied and which
// doesn't conflict with anything already placed in the current group, until
// no more blocks can be added; then start a new group. Group i is recorded
// as depending on every group before it (0..i-1) within this batch.
func buildDependencyGroups(blocks []Block) []Group {
	if len(blocks) == 0 {
		return nil
	}

	processed := make([]bool, len(blocks))
	var groups []Group

	for {
		var current []Block
		var currentIdx []int

		for i := range blocks {
			if processed[i] {
				continue
			}

			hasUnprocessedDependency := false
			for j := 0; j < i; j++ {
				if !processed[j] && hasDependency(blocks[j], blocks[i]) {
					hasUnprocessedDependency = true
					break
				}
			}
			if hasUnprocessedDependency {
				continue
			}

			conflictsWithGroup := false
			for _, gi := range currentIdx {
				if hasDependency(blocks[i], blocks[gi]) || hasDependency(blocks[gi], blocks[i]) {
					conflictsWithGroup = true
					break
				}
			}
			if conflictsWithGroup {
				continue
			}

			current = append(current, blocks[i])
			currentIdx = append(currentIdx, i)
			processed[i] = true
		}

		if len(current) == 0 {
			break
		}
		groups = append(groups, Group{Blocks: current})

		allProcessed := true
		for _, p := range processed {
			if !p {
				allProcessed = false
				break
			}
		}
		if allProcessed {
			break
		}
	}

	for i := 1; i < len(groups); i++ {
		for j := 0; j < i; j++ {
			groups[i].DependsOnIdx = append(groups[i].DependsOnIdx, j)
		}
	}

	return groups
}

// Analyze extracts no blocks itself (callers pass the already-extracted
// Block list from the statement walk) and groups them into parallel waves.
// Before grouping, it splits blocks into batches on any gap of 2+
// non-polyglot statements between consecutive blocks (those intervening
// statements might declare variables the later block depends on, so
// treating them as a hard boundary is the conservative choice spec.md
// §4.C11/the ported source both make); each batch is grouped independently
// and every group in a later batch is recorded as depending on every group
// from all earlier batches, preserving overall program order across the
// gap.
func Analyze(blocks []Block) []Group {
	if len(blocks) == 0 {
		return nil
	}
	if len(blocks) == 1 {
		return []Group{{Blocks: []Block{blocks[0]}}}
	}

	var batches [][]Block
	current := []Block{blocks[0]}
	for i := 1; i < len(blocks); i++ {
		gap := blocks[i].StatementIndex - blocks[i-1].StatementIndex - 1
		if gap >= 2 {
			batches = append(batches, current)
			current = nil
		}
		current = append(current, blocks[i])
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}

	var all []Group
	for _, batch := range batches {
		prevCount := len(all)
		batchGroups := buildDependencyGroups(batch)
		for gi := range batchGroups {
			for i := 0; i < prevCount; i++ {
				batchGroups[gi].DependsOnIdx = append(batchGroups[gi].DependsOnIdx, i)
			}
		}
		all = append(all, batchGroups...)
	}
	return all
}
