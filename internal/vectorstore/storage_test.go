package vectorstore

import (
	"reflect"
	"testing"
)

func TestNamespacesFromStats(t *testing.T) {
	got := NamespacesFromStats(map[string]int{"zeta": 3, "alpha": 1, "empty": 0})
	if want := []string{"alpha", "zeta"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("want=%v got=%v", want, got)
	}
}

func TestNamespacesFromStatsEmpty(t *testing.T) {
	for _, stats := range []map[string]int{nil, {}, {"gone": 0}} {
		got := NamespacesFromStats(stats)
		if len(got) != 1 || got[0] != DefaultNamespace {
			t.Fatalf("want [%s] got=%v", DefaultNamespace, got)
		}
	}
}
