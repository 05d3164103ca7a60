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

// Package turnstile verifies anti-spam challenge tokens against Cloudflare
// Turnstile's siteverify endpoint.
//
// API docs: https://developers.cloudflare.com/turnstile/get-started/server-side-validation/
package turnstile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jearle/portfolio-contact/internal/models"
)

const (
	// DefaultVerifyURL is Cloudflare's siteverify endpoint.
	DefaultVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

	// DefaultTimeout bounds a single verification call.
	DefaultTimeout = 5 * time.Second
)

// ErrMissingSecret is returned by NewVerifier when no secret key is configured.
var ErrMissingSecret = errors.New("turnstile: secret key is required")

// Config configures a Verifier.
type Config struct {
	SecretKey  string
	VerifyURL  string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Verifier checks tokens with the remote endpoint. It is stateless per call.
type Verifier struct {
	secret     string
	verifyURL  string
	httpClient *http.Client
}

// NewVerifier validates cfg and returns a Verifier. A missing secret fails
// here rather than on the first request.
func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.SecretKey == "" {
		return nil, ErrMissingSecret
	}
	if cfg.VerifyURL == "" {
		cfg.VerifyURL = DefaultVerifyURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	if client.Timeout == 0 || client.Timeout > cfg.Timeout {
		c := *client
		c.Timeout = cfg.Timeout
		client = &c
	}

	return &Verifier{
		secret:     cfg.SecretKey,
		verifyURL:  cfg.VerifyURL,
		httpClient: client,
	}, nil
}

type verifyRequest struct {
	Secret   string `json:"secret"`
	Response string `json:"response"`
	RemoteIP string `json:"remoteip,omitempty"`
}

type verifyResponse struct {
	Success     bool     `json:"success"`
	ErrorCodes  []string `json:"error-codes"`
	ChallengeTS string   `json:"challenge_ts"`
	Hostname    string   `json:"hostname"`
}

// Verify submits token and the caller's address. A structured
// "success": false reply yields Passed=false with the endpoint's error codes
// and a nil error. Transport failures, non-2xx responses and undecodable
// bodies are returned as errors and must never be treated as a pass.
func (v *Verifier) Verify(ctx context.Context, token, remoteIP string) (models.VerificationResult, error) {
	payload, err := json.Marshal(verifyRequest{
		Secret:   v.secret,
		Response: token,
		RemoteIP: remoteIP,
	})
	if err != nil {
		return models.VerificationResult{}, fmt.Errorf("marshal verify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, bytes.NewReader(payload))
	if err != nil {
		return models.VerificationResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return models.VerificationResult{}, fmt.Errorf("turnstile verify: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.VerificationResult{}, fmt.Errorf("turnstile verify failed (HTTP %d): %s", resp.StatusCode, string(body))
	}

	var out verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.VerificationResult{}, fmt.Errorf("decode verify response: %w", err)
	}

	result := models.VerificationResult{
		Passed:          out.Success,
		DiagnosticCodes: out.ErrorCodes,
		Hostname:        out.Hostname,
	}
	if ts, err := time.Parse(time.RFC3339, out.ChallengeTS); err == nil {
		result.ChallengeTS = ts
	}
	return result, nil
}
