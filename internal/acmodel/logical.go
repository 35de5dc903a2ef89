package acmodel

import (
	"fmt"
	"strings"
)

// splitTriphone decomposes a logical name of the form "left-center+right",
// "left-center", "center+right", or a plain monophone "center" into its
// context parts. Missing contexts are returned as empty strings.
func splitTriphone(name string) (left, center, right string) {
	center = name
	if i := strings.IndexByte(center, '-'); i >= 0 {
		left, center = center[:i], center[i+1:]
	}
	if i := strings.IndexByte(center, '+'); i >= 0 {
		center, right = center[:i], center[i+1:]
	}
	return left, center, right
}

// backoffCandidates lists, in preference order, the progressively
// less-specific names to try when an exact triphone has no physical HMM:
// drop the right context, drop the left context, then fall back to the
// bare center monophone.
func backoffCandidates(left, center, right string) []string {
	var out []string
	if left != "" && right != "" {
		out = append(out, left+"-"+center)
		out = append(out, center+"+"+right)
	} else if left != "" {
		out = append(out, left+"-"+center)
	} else if right != "" {
		out = append(out, center+"+"+right)
	}
	out = append(out, center)
	return out
}

// ResolveLogical resolves a logical (possibly context-dependent) HMM name
// to a physical HMM, in order: an already-registered logical binding, an
// exact physical name match, a cached pseudo-phone resolution, and finally
// triphone-to-biphone-to-monophone backoff synthesising a new pseudo-phone
// entry from whichever context-independent cluster first matches.
//
// This is the logical/physical resolution spec.md §3 requires ("every
// logical name used by the dictionary resolves to a physical HMM or a
// pseudo-phone"); the backoff order itself is not dictated by any file in
// the retrieval pack, so it follows the conventional triphone->biphone->
// monophone degradation used by context-dependent HMM recognisers.
func (h *HMMSet) ResolveLogical(name string) (*PhysicalHMM, error) {
	if p, ok := h.Logical[name]; ok {
		return p, nil
	}
	if p, ok := h.ByName[name]; ok {
		return p, nil
	}
	if p, ok := h.Pseudo[name]; ok {
		return p, nil
	}

	left, center, right := splitTriphone(name)
	for _, candidate := range backoffCandidates(left, center, right) {
		if p, ok := h.ByName[candidate]; ok {
			h.Pseudo[name] = p
			return p, nil
		}
	}
	return nil, fmt.Errorf("acmodel: logical name %q resolves to no physical HMM or pseudo-phone", name)
}

// PseudoPhoneCount reports how many distinct logical names were resolved
// via backoff rather than an exact or registered match, a useful AM
// coverage diagnostic when loading a new dictionary against a fixed model.
func (h *HMMSet) PseudoPhoneCount() int {
	return len(h.Pseudo)
}
