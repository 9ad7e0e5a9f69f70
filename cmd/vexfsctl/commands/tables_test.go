package commands

import (
	"testing"
	"time"

	"github.com/vexfs/vexfs/pkg/apiclient"
	"github.com/vexfs/vexfs/pkg/httpshim"
)

func TestTokenTableRows(t *testing.T) {
	exp := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tbl := tokenTable{resp: &apiclient.TokenResponse{AccessToken: "abc.def.ghi", ExpiresAt: exp}}

	rows := tbl.Rows()
	if rows[0][1] != "abc.def.ghi" {
		t.Errorf("Rows()[0][1] = %q, want access token", rows[0][1])
	}
	if rows[1][1] != exp.Format("2006-01-02T15:04:05Z07:00") {
		t.Errorf("Rows()[1][1] = %q, want formatted expiry", rows[1][1])
	}
}

func TestHealthTableRows(t *testing.T) {
	tbl := healthTable{h: httpshim.HealthWire{Healthy: true, Collections: 3}}
	rows := tbl.Rows()
	if rows[0][1] != "healthy" {
		t.Errorf("Rows()[0][1] = %q, want \"healthy\"", rows[0][1])
	}
	if rows[1][1] != "3" {
		t.Errorf("Rows()[1][1] = %q, want \"3\"", rows[1][1])
	}

	tbl = healthTable{h: httpshim.HealthWire{Healthy: false}}
	if tbl.Rows()[0][1] != "unhealthy" {
		t.Errorf("Rows()[0][1] = %q, want \"unhealthy\"", tbl.Rows()[0][1])
	}
}

func TestMetricsTableRows(t *testing.T) {
	tbl := metricsTable{m: httpshim.MetricsWire{
		Collections:   2,
		TotalVectors:  100,
		SearchesTotal: 50,
		AvgLatencyUs:  120,
	}}
	rows := tbl.Rows()
	if len(rows) == 0 {
		t.Fatal("Rows() returned no rows")
	}
}
