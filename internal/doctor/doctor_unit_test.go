package doctor

import (
	"reflect"
	"testing"
)

func TestGrammarFilesForPrefixes(t *testing.T) {
	tests := []struct {
		name string
		csv  string
		want []string
	}{
		{"single", "models/grammar", []string{"models/grammar.dfa", "models/grammar.dict", "models/grammar.term"}},
		{
			"multiple", "a,b",
			[]string{"a.dfa", "a.dict", "a.term", "b.dfa", "b.dict", "b.term"},
		},
		{"empty entries skipped", "a,,b", []string{"a.dfa", "a.dict", "a.term", "b.dfa", "b.dict", "b.term"}},
		{"blank", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GrammarFilesForPrefixes(tt.csv)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("GrammarFilesForPrefixes(%q) = %v; want %v", tt.csv, got, tt.want)
			}
		})
	}
}
