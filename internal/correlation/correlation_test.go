// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package correlation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

// TestMiddleware verifies a v4 ID is set on the response and in the context.
func TestMiddleware(t *testing.T) {
	var seen Context
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := From(r.Context())
		if !ok {
			t.Fatal("context not set")
		}
		seen = c
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/contact", nil)
	req.RemoteAddr = "203.0.113.5:51234"
	req.Header.Set(Header, "client-supplied")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	id, err := uuid.Parse(rr.Header().Get(Header))
	if err != nil {
		t.Fatalf("header is not a UUID: %v", err)
	}
	if id.Version() != 4 {
		t.Errorf("version = %d, want 4", id.Version())
	}
	if id != seen.RequestID {
		t.Errorf("header %s != context %s", id, seen.RequestID)
	}
	if seen.SourceAddress != "203.0.113.5" {
		t.Errorf("source address = %q", seen.SourceAddress)
	}
}

// TestMiddleware_UniquePerRequest verifies IDs differ between requests.
func TestMiddleware_UniquePerRequest(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	ids := map[string]bool{}
	for i := 0; i < 50; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		ids[rr.Header().Get(Header)] = true
	}
	if len(ids) != 50 {
		t.Errorf("got %d unique IDs, want 50", len(ids))
	}
}

// TestSourceAddress verifies host extraction.
func TestSourceAddress(t *testing.T) {
	tests := map[string]string{
		"192.0.2.1:443":    "192.0.2.1",
		"[2001:db8::1]:80": "2001:db8::1",
		"192.0.2.9":        "192.0.2.9",
	}
	for remote, want := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = remote
		if got := SourceAddress(r); got != want {
			t.Errorf("SourceAddress(%q) = %q, want %q", remote, got, want)
		}
	}
}

// TestFrom_Missing verifies absence is reported.
func TestFrom_Missing(t *testing.T) {
	if _, ok := From(context.Background()); ok {
		t.Error("expected no context")
	}
}

// TestInstance verifies the URN form.
func TestInstance(t *testing.T) {
	c := Context{RequestID: uuid.MustParse("6ba7b810-9dad-41d1-80b4-00c04fd430c8")}
	if got := c.Instance(); got != "urn:uuid:6ba7b810-9dad-41d1-80b4-00c04fd430c8" {
		t.Errorf("instance = %q", got)
	}
}
