package commands

import (
	"testing"

	"github.com/vexfs/vexfs/pkg/httpshim"
)

func TestHitListRows(t *testing.T) {
	l := hitList([]httpshim.HitWire{
		{ID: 7, Distance: 0.125, Metadata: map[string]string{"source": "manual"}},
	})

	rows := l.Rows()
	if len(rows) != 1 {
		t.Fatalf("Rows() returned %d rows, want 1", len(rows))
	}
	if rows[0][0] != "7" {
		t.Errorf("Rows()[0][0] = %q, want \"7\"", rows[0][0])
	}
	if rows[0][1] != "0.125000" {
		t.Errorf("Rows()[0][1] = %q, want \"0.125000\"", rows[0][1])
	}
}

func TestPrintQueried(t *testing.T) {
	resp := httpshim.SearchResponse{Hits: []httpshim.HitWire{{ID: 3, Distance: 0.5}}}
	if err := printQueried(resp, "hits.0.id"); err != nil {
		t.Fatalf("printQueried() error = %v", err)
	}
}
