package lm

import (
	"fmt"

	"github.com/example/go-recog/internal/dict"
)

// PendingHook mirrors multi-gram.c's per-grammar hook: a grammar can have
// at most one pending structural change queued until the next rebuild.
type PendingHook int

const (
	HookNone PendingHook = iota
	HookDelete
	HookActivate
	HookDeactivate
)

// Grammar is one loaded grammar (DFA-based or flat dictionary-only),
// carrying its own id, active flag, pending hook, and the offsets it
// occupies within the composed global grammar once installed.
type Grammar struct {
	ID     int
	Name   string
	Active bool
	Hook   PendingHook

	Dict *dict.Dictionary
	DFA  *DFA // nil for a plain N-gram/flat-word-list grammar

	WordBegin, WordEnd         int
	CategoryBegin, CategoryEnd int
}

// Manager composes multiple grammars into one global grammar, the same
// role multi-gram.c's MULTIGRAM list plus global_dfa/global_winfo play:
// each grammar keeps its own id and active flag, and install/remove/
// activate/deactivate requests are staged as a Hook and only take effect
// on the next ApplyPending (mirroring Julius's install-then-rebuild
// module-mode flow, where structural changes from a client connection are
// queued and applied between utterances, not mid-recognition).
type Manager struct {
	grammars []*Grammar
	nextID   int
}

// NewManager returns an empty grammar manager.
func NewManager() *Manager {
	return &Manager{}
}

// Add installs a new grammar, active by default, and returns it. The
// caller must call ApplyPending to fold it into the global offset tables.
func (m *Manager) Add(name string, d *dict.Dictionary, g *DFA) *Grammar {
	gr := &Grammar{ID: m.nextID, Name: name, Active: true, Dict: d, DFA: g}
	m.nextID++
	m.grammars = append(m.grammars, gr)
	return gr
}

func (m *Manager) find(id int) *Grammar {
	for _, g := range m.grammars {
		if g.ID == id {
			return g
		}
	}
	return nil
}

// MarkDelete stages grammar id for removal on the next ApplyPending.
func (m *Manager) MarkDelete(id int) error {
	g := m.find(id)
	if g == nil {
		return fmt.Errorf("lm: no such grammar id %d", id)
	}
	g.Hook = HookDelete
	return nil
}

// MarkActivate stages grammar id to become active on the next
// ApplyPending. A no-op (but not an error) if already active with no
// pending deactivate.
func (m *Manager) MarkActivate(id int) error {
	g := m.find(id)
	if g == nil {
		return fmt.Errorf("lm: no such grammar id %d", id)
	}
	if g.Active && g.Hook != HookDeactivate {
		return nil
	}
	g.Hook = HookActivate
	return nil
}

// MarkDeactivate stages grammar id to become inactive on the next
// ApplyPending.
func (m *Manager) MarkDeactivate(id int) error {
	g := m.find(id)
	if g == nil {
		return fmt.Errorf("lm: no such grammar id %d", id)
	}
	if !g.Active && g.Hook != HookActivate {
		return nil
	}
	g.Hook = HookDeactivate
	return nil
}

// All returns every grammar, active and inactive.
func (m *Manager) All() []*Grammar { return m.grammars }

// Active returns only the currently active grammars, in the order they
// contribute to the global grammar.
func (m *Manager) Active() []*Grammar {
	var out []*Grammar
	for _, g := range m.grammars {
		if g.Active {
			out = append(out, g)
		}
	}
	return out
}

// ApplyPending executes every grammar's pending hook: deletions are
// removed from the set, activate/deactivate hooks flip Active and clear
// back to HookNone, and the global word/category offset tables are
// recomputed across the surviving active grammars in order. It reports
// whether anything changed, so a caller can skip an expensive lexicon
// rebuild when nothing was pending.
func (m *Manager) ApplyPending() bool {
	changed := false

	kept := m.grammars[:0]
	for _, g := range m.grammars {
		if g.Hook == HookDelete {
			changed = true
			continue
		}
		kept = append(kept, g)
	}
	m.grammars = kept

	for _, g := range m.grammars {
		switch g.Hook {
		case HookActivate:
			if !g.Active {
				changed = true
			}
			g.Active = true
			g.Hook = HookNone
		case HookDeactivate:
			if g.Active {
				changed = true
			}
			g.Active = false
			g.Hook = HookNone
		}
	}

	m.rebuildOffsets()
	return changed
}

// rebuildOffsets recomputes each active grammar's slice of the global
// word-id and category-id space, walking the active grammars in order
// and accumulating counts — the Go counterpart of multigram_build_append's
// cate_begin/word_begin bookkeeping. Inactive grammars keep stale offsets
// until reactivated; they are excluded from recognition regardless.
func (m *Manager) rebuildOffsets() {
	wordOffset, catOffset := 0, 0
	for _, g := range m.grammars {
		if !g.Active {
			continue
		}
		wordCount := 0
		if g.Dict != nil {
			wordCount = len(g.Dict.Entries)
		}
		g.WordBegin = wordOffset
		g.WordEnd = wordOffset + wordCount
		wordOffset += wordCount

		catCount := 0
		if g.DFA != nil {
			catCount = len(g.DFA.Categories)
		}
		g.CategoryBegin = catOffset
		g.CategoryEnd = catOffset + catCount
		catOffset += catCount
	}
}

// GlobalWordCount returns the total word count spanned by the active
// grammars after the last ApplyPending.
func (m *Manager) GlobalWordCount() int {
	total := 0
	for _, g := range m.Active() {
		total += g.WordEnd - g.WordBegin
	}
	return total
}
