package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// dummyHandler returns 200 OK for testing the auth middleware.
var dummyHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
})

func serveAuth(secret string, setup func(r *http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/jsonrpc", nil)
	if setup != nil {
		setup(req)
	}
	rr := httptest.NewRecorder()
	requireToken(secret, dummyHandler).ServeHTTP(rr, req)
	return rr
}

func TestRequireToken_ValidToken(t *testing.T) {
	rr := serveAuth("test-secret", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer test-secret")
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Body.String() != "ok" {
		t.Fatalf("expected 'ok' body, got %q", rr.Body.String())
	}
}

func TestRequireToken_MissingToken(t *testing.T) {
	rr := serveAuth("test-secret", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp["jsonrpc"] != "2.0" {
		t.Fatalf("expected jsonrpc 2.0, got %v", resp["jsonrpc"])
	}
	errObj, ok := resp["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error object, got %v", resp["error"])
	}
	if errObj["code"].(float64) != -32600 {
		t.Fatalf("expected error code -32600, got %v", errObj["code"])
	}
	if errObj["message"] != "Unauthorized" {
		t.Fatalf("expected 'Unauthorized', got %v", errObj["message"])
	}
}

func TestRequireToken_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		header string
	}{
		{name: "wrong token", secret: "s", header: "Bearer wrong"},
		{name: "empty secret", secret: "", header: "Bearer anything"},
		{name: "missing prefix", secret: "s", header: "s"},
		{name: "basic auth", secret: "s", header: "Basic cw=="},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serveAuth(tt.secret, func(r *http.Request) {
				r.Header.Set("Authorization", tt.header)
			})
			if rr.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rr.Code)
			}
		})
	}
}

func TestRequireToken_QueryToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/jsonrpc/ws?token=qs-secret", nil)
	rr := httptest.NewRecorder()
	requireToken("qs-secret", dummyHandler).ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with query token, got %d", rr.Code)
	}
}

func TestRequireToken_HeaderWinsOverQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/jsonrpc/ws?token=s", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rr := httptest.NewRecorder()
	requireToken("s", dummyHandler).ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 when the header token is wrong, got %d", rr.Code)
	}
}

func TestValidToken(t *testing.T) {
	if !validToken("secret", "secret") {
		t.Fatal("expected matching tokens to return true")
	}
	if validToken("secret", "wrong") {
		t.Fatal("expected non-matching tokens to return false")
	}
	if validToken("secret", "") {
		t.Fatal("expected empty token to return false")
	}
	if validToken("", "") {
		t.Fatal("expected both empty to return false")
	}
}
