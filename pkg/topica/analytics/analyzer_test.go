package analytics

import (
	"reflect"
	"sync"
	"testing"
)

func TestAnalyzerSnapshot(t *testing.T) {
	a := NewAnalyzer()
	a.Process("english", []string{"network", "research", "network"})
	a.Process("spanish", []string{"red", "investig"})
	a.Process("english", []string{"network"})

	s := a.Snapshot()
	if s.TotalDocs != 3 || s.TotalTokens != 6 {
		t.Errorf("docs = %d tokens = %d, want 3 and 6", s.TotalDocs, s.TotalTokens)
	}
	if s.UniqueTerms() != 4 {
		t.Errorf("UniqueTerms = %d, want 4", s.UniqueTerms())
	}
	if want := map[string]int64{"english": 2, "spanish": 1}; !reflect.DeepEqual(s.Languages, want) {
		t.Errorf("Languages = %v, want %v", s.Languages, want)
	}
	if s.TokenDF["network"] != 2 || s.TokenFreq["network"] != 3 {
		t.Errorf("network df = %d freq = %d", s.TokenDF["network"], s.TokenFreq["network"])
	}

	// Snapshots are copies.
	s.TokenFreq["network"] = 0
	if a.Snapshot().TokenFreq["network"] != 3 {
		t.Error("snapshot shares state with analyzer")
	}
}

func TestTopTerms(t *testing.T) {
	a := NewAnalyzer()
	a.Process("english", []string{"beta", "alpha", "gamma", "gamma"})

	top := a.Snapshot().TopTerms(2)
	if len(top) != 2 || top[0].Term != "gamma" || top[1].Term != "alpha" {
		t.Errorf("TopTerms = %+v", top)
	}
}

func TestUbiquitous(t *testing.T) {
	a := NewAnalyzer()
	a.Process("english", []string{"acme", "network"})
	a.Process("english", []string{"acme", "policy"})
	a.Process("english", []string{"acme", "network"})
	a.Process("english", []string{"research"})

	got := a.Snapshot().Ubiquitous(0.5)
	if len(got) != 2 || got[0].Term != "acme" || got[1].Term != "network" {
		t.Fatalf("Ubiquitous = %+v", got)
	}
	if got[0].Share != 0.75 {
		t.Errorf("acme share = %v, want 0.75", got[0].Share)
	}
	if len(NewAnalyzer().Snapshot().Ubiquitous(0.1)) != 0 {
		t.Error("empty analyzer should report nothing")
	}
}

func TestAnalyzerConcurrent(t *testing.T) {
	a := NewAnalyzer()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Process("english", []string{"token"})
		}()
	}
	wg.Wait()

	if got := a.Snapshot().TokenDF["token"]; got != 8 {
		t.Errorf("df = %d, want 8", got)
	}
}
