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

// Package correlation assigns each inbound request a unique identifier and
// carries it, together with the caller's address, through every log line and
// error report emitted for that request.
package correlation

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/google/uuid"

	"github.com/jearle/portfolio-contact/internal/logging"
)

// Header is the response header carrying the request ID.
const Header = "X-Request-ID"

// Context identifies one inbound request.
type Context struct {
	RequestID     uuid.UUID
	SourceAddress string
}

// New creates a Context with a fresh UUID v4.
func New(sourceAddress string) Context {
	return Context{RequestID: uuid.New(), SourceAddress: sourceAddress}
}

// Instance returns the request ID as a URN, suitable for a problem's
// instance member.
func (c Context) Instance() string {
	return c.RequestID.URN()
}

// Logger returns l tagged with the request ID.
func (c Context) Logger(l *slog.Logger) *slog.Logger {
	return l.With(logging.KeyRequestID, c.RequestID.String())
}

type ctxKey struct{}

// With stores c in ctx. Loggers built by logging.New pick the request ID up
// from ctx on every *Context call.
func With(ctx context.Context, c Context) context.Context {
	ctx = logging.WithRequestID(ctx, c.RequestID.String())
	return context.WithValue(ctx, ctxKey{}, c)
}

// From returns the Context stored in ctx, if any.
func From(ctx context.Context) (Context, bool) {
	c, ok := ctx.Value(ctxKey{}).(Context)
	return c, ok
}

// Middleware assigns a Context to every request and echoes the request ID
// in the response header before the handler runs, so every response,
// success or failure, carries it.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := New(SourceAddress(r))
		w.Header().Set(Header, c.RequestID.String())
		next.ServeHTTP(w, r.WithContext(With(r.Context(), c)))
	})
}

// SourceAddress extracts the caller's IP from r.RemoteAddr. When proxies are
// trusted, chi's RealIP middleware has already rewritten RemoteAddr from the
// forwarding headers.
func SourceAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
