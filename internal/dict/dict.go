// Package dict reads the HTK-style pronunciation dictionary: one word per
// line, each line giving a grammar entry name, an optional bracketed
// output string, and a phone sequence of logical HMM names.
package dict

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/example/go-recog/internal/acmodel"
)

// Entry is one dictionary word: its grammar-facing name (an N-gram word
// or a DFA terminal symbol id), the string to emit on recognition, its
// pronunciation as a sequence of logical HMM names, whether it is
// transparent to the search (silently passed through, per the `{...}`
// output form), and its in-class log probability for class N-grams.
type Entry struct {
	Name        string
	Output      string
	Transparent bool
	Phones      []string
	ClassProb   float64
}

// Resolve maps every phone in e's pronunciation to a physical HMM via
// hmm's logical-name resolution (exact, registered, or pseudo-phone
// backoff), failing if any phone cannot be resolved at all.
func (e *Entry) Resolve(hmm *acmodel.HMMSet) ([]*acmodel.PhysicalHMM, error) {
	out := make([]*acmodel.PhysicalHMM, len(e.Phones))
	for i, name := range e.Phones {
		p, err := hmm.ResolveLogical(name)
		if err != nil {
			return nil, fmt.Errorf("dict: entry %q phone %d (%q): %w", e.Name, i, name, err)
		}
		out[i] = p
	}
	return out, nil
}

// Dictionary is the full loaded word list.
type Dictionary struct {
	Entries []*Entry

	// MissingPhones lists logical phone names that appeared in some
	// entry's pronunciation but could not be resolved against the
	// acoustic model passed to Load, deduplicated. Mirrors
	// voca_load_htkdict's errph_root missing-phone report.
	MissingPhones []string
}

// Load reads a dictionary from r. If hmm is non-nil, every phone in every
// pronunciation is resolved against it (triphoneConv requests word-internal
// triphone conversion of each phone sequence first); unresolvable phones
// are collected into MissingPhones rather than aborting the whole load, so
// a dictionary with a few OOV-model phones can still be inspected.
func Load(r io.Reader, hmm *acmodel.HMMSet, triphoneConv bool) (*Dictionary, error) {
	d := &Dictionary{}
	missing := make(map[string]struct{})

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "DICEND" {
			break
		}
		entry, err := parseLine(line, lineNum)
		if err != nil {
			return nil, err
		}
		if triphoneConv && len(entry.Phones) > 1 {
			entry.Phones = buildTriphones(entry.Phones)
		}
		if hmm != nil {
			for _, name := range entry.Phones {
				if _, err := hmm.ResolveLogical(name); err != nil {
					missing[name] = struct{}{}
				}
			}
		}
		d.Entries = append(d.Entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("dict: %w", err)
	}

	for name := range missing {
		d.MissingPhones = append(d.MissingPhones, name)
	}
	return d, nil
}

func parseLine(line string, lineNum int) (*Entry, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return nil, fmt.Errorf("dict: line %d: corrupted entry: %q", lineNum, line)
	}
	e := &Entry{Name: fields[0]}
	rest := fields[1:]

	if strings.HasPrefix(rest[0], "@") {
		if len(rest[0]) == 1 {
			return nil, fmt.Errorf("dict: line %d: value after '@' missing", lineNum)
		}
		var prob float64
		if _, err := fmt.Sscanf(rest[0][1:], "%g", &prob); err != nil {
			return nil, fmt.Errorf("dict: line %d: bad class probability %q", lineNum, rest[0])
		}
		e.ClassProb = prob
		rest = rest[1:]
		if len(rest) == 0 {
			return nil, fmt.Errorf("dict: line %d: word %q has no phone sequence", lineNum, e.Name)
		}
	}

	switch first := rest[0]; {
	case strings.HasPrefix(first, "[") && strings.HasSuffix(first, "]"):
		e.Output = strings.TrimSuffix(strings.TrimPrefix(first, "["), "]")
		rest = rest[1:]
	case strings.HasPrefix(first, "{") && strings.HasSuffix(first, "}"):
		e.Output = strings.TrimSuffix(strings.TrimPrefix(first, "{"), "}")
		e.Transparent = true
		rest = rest[1:]
	default:
		e.Output = e.Name
	}

	if len(rest) == 0 {
		return nil, fmt.Errorf("dict: line %d: word %q has no phone sequence", lineNum, e.Name)
	}
	e.Phones = append([]string{}, rest...)
	return e, nil
}

// buildTriphones converts a word-internal monophone sequence into
// triphone names, each phone annotated with its immediate left and right
// neighbours (the word-initial phone has no left context, the word-final
// phone no right context). This is the word-internal triphone conversion
// voca_load_htkdict.c performs via its cycle_triphone 3-slot sliding
// window; it is reproduced here as a direct index lookup since Go has no
// need for the original's single-pass streaming buffer.
func buildTriphones(phones []string) []string {
	out := make([]string, len(phones))
	for i, p := range phones {
		left, right := "", ""
		if i > 0 {
			left = phones[i-1]
		}
		if i < len(phones)-1 {
			right = phones[i+1]
		}
		out[i] = triphoneName(left, p, right)
	}
	return out
}

func triphoneName(left, center, right string) string {
	name := center
	if left != "" {
		name = left + "-" + name
	}
	if right != "" {
		name = name + "+" + right
	}
	return name
}
