package memstore

import (
	"testing"

	"github.com/cognicore/topica/pkg/topica/store/storetest"
)

func TestMemoryStore(t *testing.T) {
	st := New()
	defer st.Close()
	storetest.Conformance(t, st)
}
