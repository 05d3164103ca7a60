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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/jearle/portfolio-contact/internal/models"
)

// DefaultGraphBaseURL is the Microsoft Graph v1.0 root.
const DefaultGraphBaseURL = "https://graph.microsoft.com/v1.0"

// GraphConfig configures delivery through a Microsoft 365 mailbox using an
// app registration with the Mail.Send application permission.
type GraphConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	// SenderUser is the UPN or object ID of the mailbox that sends.
	SenderUser string
	BaseURL    string
	TokenURL   string
	Timeout    time.Duration

	// HTTPClient, when set, is used as-is instead of the OAuth2 client.
	HTTPClient *http.Client
}

// GraphSender delivers through Graph's sendMail action.
type GraphSender struct {
	httpClient   *http.Client
	graphBaseURL string
	senderUser   string
}

// NewGraphSender creates the transport, authenticating with OAuth2 client
// credentials unless cfg.HTTPClient is provided.
func NewGraphSender(ctx context.Context, cfg GraphConfig) (*GraphSender, error) {
	if cfg.SenderUser == "" {
		return nil, errors.New("graph: sender user is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGraphBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	client := cfg.HTTPClient
	if client == nil {
		if cfg.TenantID == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
			return nil, errors.New("graph: tenant ID, client ID and client secret are required")
		}
		tokenURL := cfg.TokenURL
		if tokenURL == "" {
			tokenURL = fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.TenantID)
		}
		creds := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     tokenURL,
			Scopes:       []string{"https://graph.microsoft.com/.default"},
		}
		client = creds.Client(ctx)
		client.Timeout = cfg.Timeout
	}

	return &GraphSender{
		httpClient:   client,
		graphBaseURL: cfg.BaseURL,
		senderUser:   cfg.SenderUser,
	}, nil
}

// Name implements Sender.
func (g *GraphSender) Name() string { return string(ProviderGraph) }

type graphRecipient struct {
	EmailAddress struct {
		Address string `json:"address"`
		Name    string `json:"name,omitempty"`
	} `json:"emailAddress"`
}

type graphMessage struct {
	Subject string `json:"subject"`
	Body    struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
	ToRecipients []graphRecipient `json:"toRecipients"`
	ReplyTo      []graphRecipient `json:"replyTo,omitempty"`
}

type graphSendMail struct {
	Message         graphMessage `json:"message"`
	SaveToSentItems bool         `json:"saveToSentItems"`
}

func toRecipient(a models.EmailAddress) graphRecipient {
	var r graphRecipient
	r.EmailAddress.Address = a.Address
	r.EmailAddress.Name = a.Name
	return r
}

// Send implements Sender. Graph replies 202 without a message ID, so the
// request-id response header is returned instead.
func (g *GraphSender) Send(ctx context.Context, msg *models.OutboundEmail) (string, error) {
	var payload graphSendMail
	payload.Message.Subject = msg.Subject
	if msg.HTML != "" {
		payload.Message.Body.ContentType = "HTML"
		payload.Message.Body.Content = msg.HTML
	} else {
		payload.Message.Body.ContentType = "Text"
		payload.Message.Body.Content = msg.Text
	}
	for _, to := range msg.To {
		payload.Message.ToRecipients = append(payload.Message.ToRecipients, toRecipient(to))
	}
	if msg.ReplyTo != nil {
		payload.Message.ReplyTo = []graphRecipient{toRecipient(*msg.ReplyTo)}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", Permanent(fmt.Errorf("marshal sendMail: %w", err))
	}

	u := fmt.Sprintf("%s/users/%s/sendMail", g.graphBaseURL, url.PathEscape(g.senderUser))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("graph sendMail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("graph API returned HTTP %d for sendMail: %s", resp.StatusCode, string(respBody))
		if isPermanentStatus(resp.StatusCode) {
			return "", Permanent(err)
		}
		return "", err
	}

	return resp.Header.Get("request-id"), nil
}
