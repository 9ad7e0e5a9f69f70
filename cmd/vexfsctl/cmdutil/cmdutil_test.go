package cmdutil

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/vexfs/vexfs/internal/cli/output"
)

func TestGetClient_DefaultsToLocalhost(t *testing.T) {
	old := *Flags
	defer func() { *Flags = old }()

	Flags.ServerURL = ""
	Flags.Token = ""
	os.Unsetenv("VEXFSCTL_SERVER")
	os.Unsetenv("VEXFSCTL_TOKEN")

	client, err := GetClient()
	if err != nil {
		t.Fatalf("GetClient() error = %v", err)
	}
	if client == nil {
		t.Fatal("GetClient() returned a nil client")
	}
}

func TestGetClient_PrefersFlagsOverEnv(t *testing.T) {
	old := *Flags
	defer func() { *Flags = old }()

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	t.Setenv("VEXFSCTL_SERVER", "http://from-env:9090")
	t.Setenv("VEXFSCTL_TOKEN", "env-token")
	Flags.ServerURL = srv.URL
	Flags.Token = "flag-token"

	client, err := GetClient()
	if err != nil {
		t.Fatalf("GetClient() error = %v", err)
	}
	if client == nil {
		t.Fatal("GetClient() returned a nil client")
	}
	if _, err := client.Health(); err != nil {
		t.Fatalf("Health() against the --server URL: %v", err)
	}
	if gotAuth != "Bearer flag-token" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer flag-token")
	}
}

func TestOutputFormat(t *testing.T) {
	old := *Flags
	defer func() { *Flags = old }()

	tests := []struct {
		value   string
		want    output.Format
		wantErr bool
	}{
		{"table", output.FormatTable, false},
		{"json", output.FormatJSON, false},
		{"yaml", output.FormatYAML, false},
		{"bogus", output.FormatTable, true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			Flags.Output = tt.value
			got, err := OutputFormat()
			if (err != nil) != tt.wantErr {
				t.Fatalf("OutputFormat() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("OutputFormat() = %v, want %v", got, tt.want)
			}
		})
	}
}
