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

package mail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jearle/portfolio-contact/internal/models"
)

func testEmail() *models.OutboundEmail {
	return &models.OutboundEmail{
		To:      []models.EmailAddress{{Address: "owner@example.com"}},
		From:    models.EmailAddress{Address: "noreply@example.com", Name: "Portfolio"},
		Subject: "New message from John Doe",
		HTML:    "<p>hi</p>",
		Text:    "hi",
		ReplyTo: &models.EmailAddress{Address: "john@ex.com", Name: "John Doe"},
	}
}

// TestResendSender_Send verifies the request shape and returned ID.
func TestResendSender_Send(t *testing.T) {
	var got resendEmail
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/emails" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer re_test" {
			t.Errorf("Authorization = %q", auth)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"id":"49a3999c-0ce1-4ea6-ab68-afcd6dc2e794"}`))
	}))
	defer server.Close()

	s, err := NewResendSender(ResendConfig{APIKey: "re_test", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	id, err := s.Send(context.Background(), testEmail())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "49a3999c-0ce1-4ea6-ab68-afcd6dc2e794" {
		t.Errorf("id = %q", id)
	}
	if got.From != `"Portfolio" <noreply@example.com>` {
		t.Errorf("from = %q", got.From)
	}
	if len(got.ReplyTo) != 1 || !strings.Contains(got.ReplyTo[0], "john@ex.com") {
		t.Errorf("reply_to = %v", got.ReplyTo)
	}
}

// TestResendSender_StatusClassification verifies which failures are retryable.
func TestResendSender_StatusClassification(t *testing.T) {
	tests := []struct {
		status    int
		permanent bool
	}{
		{http.StatusUnprocessableEntity, true},
		{http.StatusUnauthorized, true},
		{http.StatusTooManyRequests, false},
		{http.StatusInternalServerError, false},
		{http.StatusBadGateway, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"message":"nope"}`))
			}))
			defer server.Close()

			s, _ := NewResendSender(ResendConfig{APIKey: "k", BaseURL: server.URL})
			_, err := s.Send(context.Background(), testEmail())
			if err == nil {
				t.Fatal("expected error")
			}
			if IsPermanent(err) != tt.permanent {
				t.Errorf("permanent = %v, want %v (%v)", IsPermanent(err), tt.permanent, err)
			}
		})
	}
}

// TestNewResendSender_RequiresKey verifies credential validation.
func TestNewResendSender_RequiresKey(t *testing.T) {
	if _, err := NewResendSender(ResendConfig{}); err == nil {
		t.Error("expected error without API key")
	}
}

// TestGraphSender_Send verifies the sendMail request against a fake Graph.
func TestGraphSender_Send(t *testing.T) {
	var got graphSendMail
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/contact@example.com/sendMail" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("request-id", "graph-req-1")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	g, err := NewGraphSender(context.Background(), GraphConfig{
		SenderUser: "contact@example.com",
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	id, err := g.Send(context.Background(), testEmail())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "graph-req-1" {
		t.Errorf("id = %q", id)
	}
	if got.Message.Body.ContentType != "HTML" {
		t.Errorf("content type = %q", got.Message.Body.ContentType)
	}
	if len(got.Message.ToRecipients) != 1 || got.Message.ToRecipients[0].EmailAddress.Address != "owner@example.com" {
		t.Errorf("recipients = %+v", got.Message.ToRecipients)
	}
	if len(got.Message.ReplyTo) != 1 {
		t.Errorf("replyTo = %+v", got.Message.ReplyTo)
	}
}

// TestGraphSender_ServerError verifies 5xx responses are retryable errors.
func TestGraphSender_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	g, _ := NewGraphSender(context.Background(), GraphConfig{
		SenderUser: "u",
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
	})
	_, err := g.Send(context.Background(), testEmail())
	if err == nil {
		t.Fatal("expected error")
	}
	if IsPermanent(err) {
		t.Error("503 should be retryable")
	}
}

// TestNewGraphSender_RequiresCredentials verifies construction-time checks.
func TestNewGraphSender_RequiresCredentials(t *testing.T) {
	if _, err := NewGraphSender(context.Background(), GraphConfig{SenderUser: "u"}); err == nil {
		t.Error("expected error without OAuth credentials")
	}
	if _, err := NewGraphSender(context.Background(), GraphConfig{}); err == nil {
		t.Error("expected error without sender user")
	}
}

// TestBuildNotification verifies HTML escaping and reply-to.
func TestBuildNotification(t *testing.T) {
	msg := models.InboundMessage{
		Name:  "John <b>Doe</b>",
		Email: "john@ex.com",
		Body:  "line one\nline <script>two</script>",
	}
	out, err := BuildNotification(msg,
		models.EmailAddress{Address: "noreply@example.com"},
		models.EmailAddress{Address: "owner@example.com"},
		"[Portfolio]",
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(out.HTML, "<script>") || strings.Contains(out.HTML, "<b>Doe") {
		t.Errorf("HTML not escaped: %s", out.HTML)
	}
	if !strings.Contains(out.HTML, "<br>") {
		t.Error("newlines should become <br>")
	}
	if out.Subject != "[Portfolio] New message from John <b>Doe</b>" {
		t.Errorf("subject = %q", out.Subject)
	}
	if out.ReplyTo == nil || out.ReplyTo.Address != "john@ex.com" {
		t.Errorf("replyTo = %+v", out.ReplyTo)
	}
	if !strings.Contains(out.Text, "line <script>two</script>") {
		t.Error("text part should carry the raw body")
	}
}
