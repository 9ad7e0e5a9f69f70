package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vexfs/vexfs/pkg/verrors"
)

type testRequest struct {
	w *httptest.ResponseRecorder
	r *http.Request
}

func newTestRequest(t *testing.T, authHeader string) testRequest {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil)
	if authHeader != "" {
		r.Header.Set("Authorization", authHeader)
	}
	return testRequest{w: httptest.NewRecorder(), r: r}
}

func testHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", verrors.New(verrors.NotFound, "no such collection"), http.StatusNotFound},
		{"conflict", verrors.New(verrors.Conflict, "already exists"), http.StatusConflict},
		{"argument", verrors.New(verrors.Argument, "bad dimensions"), http.StatusBadRequest},
		{"unmapped code", verrors.New(verrors.Resource, "out of space"), http.StatusInternalServerError},
		{"plain error", errPlain("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

type errPlain string

func (e errPlain) Error() string { return string(e) }
