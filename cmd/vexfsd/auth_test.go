package main

import (
	"testing"
	"time"
)

func TestIssueAndVerifyToken(t *testing.T) {
	token, exp, err := issueToken("shared-secret")
	if err != nil {
		t.Fatalf("issueToken() error = %v", err)
	}
	if token == "" {
		t.Fatal("issueToken() returned an empty token")
	}
	if exp.Before(time.Now()) {
		t.Fatalf("issueToken() expiry %v is already in the past", exp)
	}
	if err := verifyToken("shared-secret", token); err != nil {
		t.Errorf("verifyToken() on a freshly issued token: %v", err)
	}
}

func TestVerifyToken_WrongSecret(t *testing.T) {
	token, _, err := issueToken("shared-secret")
	if err != nil {
		t.Fatalf("issueToken() error = %v", err)
	}
	if err := verifyToken("other-secret", token); err == nil {
		t.Error("verifyToken() should reject a token signed with a different secret")
	}
}

func TestVerifyToken_Garbage(t *testing.T) {
	if err := verifyToken("shared-secret", "not-a-jwt"); err == nil {
		t.Error("verifyToken() should reject a malformed token string")
	}
}

func TestRequireBearerToken_NoSecretPassesThrough(t *testing.T) {
	called := false
	h := requireBearerToken("", testHandler(&called))
	rr := newTestRequest(t, "")
	h.ServeHTTP(rr.w, rr.r)
	if !called {
		t.Error("requireBearerToken(\"\", ...) should pass every request through unauthenticated")
	}
}

func TestRequireBearerToken_RejectsMissingHeader(t *testing.T) {
	called := false
	h := requireBearerToken("secret", testHandler(&called))
	rr := newTestRequest(t, "")
	h.ServeHTTP(rr.w, rr.r)
	if called {
		t.Error("requireBearerToken() should not call next without an Authorization header")
	}
	if rr.w.Code != 401 {
		t.Errorf("status = %d, want 401", rr.w.Code)
	}
}

func TestRequireBearerToken_AcceptsValidToken(t *testing.T) {
	token, _, err := issueToken("secret")
	if err != nil {
		t.Fatalf("issueToken() error = %v", err)
	}
	called := false
	h := requireBearerToken("secret", testHandler(&called))
	rr := newTestRequest(t, "Bearer "+token)
	h.ServeHTTP(rr.w, rr.r)
	if !called {
		t.Error("requireBearerToken() should call next for a valid bearer token")
	}
}
