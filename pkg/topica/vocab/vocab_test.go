package vocab

import (
	"errors"
	"reflect"
	"testing"

	"github.com/cognicore/topica/pkg/topica/internalerr"
)

// pruningCorpus has ten documents: x in six, w in five, y in three and z in
// all of them.
func pruningCorpus() [][]string {
	docs := make([][]string, 10)
	for i := range docs {
		docs[i] = []string{"z"}
		if i < 6 {
			docs[i] = append(docs[i], "x", "x")
		}
		if i < 5 {
			docs[i] = append(docs[i], "w")
		}
		if i < 3 {
			docs[i] = append(docs[i], "y")
		}
	}
	return docs
}

func TestBuildPruning(t *testing.T) {
	tests := []struct {
		name string
		th   Thresholds
		want []string
	}{
		// x in 6 of 10 sits exactly on the ceiling; y falls under no_below.
		{"boundary inclusive", Thresholds{NoBelow: 5, NoAbove: 0.6}, []string{"x", "w"}},
		{"x above ceiling", Thresholds{NoBelow: 3, NoAbove: 0.5}, []string{"w", "y"}},
		{"floor only", Thresholds{NoBelow: 6, NoAbove: 1}, []string{"z", "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Build(pruningCorpus(), tt.th)
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if !reflect.DeepEqual(v.Terms, tt.want) {
				t.Errorf("Terms = %v, want %v", v.Terms, tt.want)
			}
			if v.NumDocs != 10 {
				t.Errorf("NumDocs = %d, want 10", v.NumDocs)
			}
		})
	}
}

func TestBuildFirstSeenIDs(t *testing.T) {
	docs := [][]string{
		{"gamma", "alpha"},
		{"beta", "alpha"},
	}
	v, err := Build(docs, Thresholds{NoBelow: 1, NoAbove: 1})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	for want, term := range []string{"gamma", "alpha", "beta"} {
		id, ok := v.ID(term)
		if !ok || id != want {
			t.Errorf("ID(%q) = %d, %v; want %d", term, id, ok, want)
		}
		if v.Term(want) != term {
			t.Errorf("Term(%d) = %q, want %q", want, v.Term(want), term)
		}
	}
	if !reflect.DeepEqual(v.DocFreq, []int{1, 2, 1}) {
		t.Errorf("DocFreq = %v", v.DocFreq)
	}
	if v.Term(99) != "" {
		t.Error("out of range id should map to empty term")
	}
}

func TestBuildKeepN(t *testing.T) {
	docs := [][]string{
		{"rare", "common", "mid"},
		{"common", "mid"},
		{"common"},
	}
	v, err := Build(docs, Thresholds{NoBelow: 1, NoAbove: 1, KeepN: 2})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// The two most frequent survive and keep first-seen order.
	if !reflect.DeepEqual(v.Terms, []string{"common", "mid"}) {
		t.Errorf("Terms = %v", v.Terms)
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		docs [][]string
		th   Thresholds
		want error
	}{
		{"empty vocabulary", [][]string{{"a"}, {"b"}}, Thresholds{NoBelow: 5, NoAbove: 1}, internalerr.ErrEmptyVocabulary},
		{"no documents", nil, DefaultThresholds(), internalerr.ErrEmptyCorpus},
		{"negative no_below", [][]string{{"a"}}, Thresholds{NoBelow: -1, NoAbove: 0.5}, internalerr.ErrInvalidConfig},
		{"zero no_above", [][]string{{"a"}}, Thresholds{NoBelow: 1, NoAbove: 0}, internalerr.ErrInvalidConfig},
		{"no_above above one", [][]string{{"a"}}, Thresholds{NoBelow: 1, NoAbove: 1.5}, internalerr.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.docs, tt.th)
			if !errors.Is(err, tt.want) {
				t.Errorf("Build error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDoc2Bow(t *testing.T) {
	v, err := Build([][]string{{"alpha", "beta"}, {"beta", "gamma"}}, Thresholds{NoBelow: 1, NoAbove: 1})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	bow := v.Doc2Bow([]string{"gamma", "beta", "unknown", "gamma", "alpha"})
	want := BOW{{ID: 0, Count: 1}, {ID: 1, Count: 1}, {ID: 2, Count: 2}}
	if !reflect.DeepEqual(bow, want) {
		t.Errorf("Doc2Bow = %v, want %v", bow, want)
	}
	if bow.Len() != 4 {
		t.Errorf("Len = %d, want 4", bow.Len())
	}

	if got := v.Doc2Bow([]string{"unknown"}); len(got) != 0 {
		t.Errorf("Doc2Bow(unknown) = %v, want empty", got)
	}

	corpus := v.Encode([][]string{{"alpha"}, {}})
	if len(corpus) != 2 || len(corpus[1]) != 0 {
		t.Errorf("Encode = %v", corpus)
	}
}

func TestReindex(t *testing.T) {
	v := &Vocabulary{Terms: []string{"a", "b"}, DocFreq: []int{1, 1}}
	if err := v.Reindex(); err != nil {
		t.Fatalf("Reindex: %v", err)
	}
	if id, ok := v.ID("b"); !ok || id != 1 {
		t.Errorf("ID(b) = %d, %v", id, ok)
	}

	bad := &Vocabulary{Terms: []string{"a", "a"}, DocFreq: []int{1, 1}}
	if err := bad.Reindex(); !errors.Is(err, internalerr.ErrIncompatibleResult) {
		t.Errorf("duplicate terms: err = %v", err)
	}
}
