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

// Package models defines the data structures shared across the contact
// pipeline. Everything here is transient: values are created per request and
// never persisted.
package models

import "time"

// InboundMessage is an untrusted contact submission as received from the
// transport layer. Fields are raw until the orchestrator has validated and
// normalised them.
type InboundMessage struct {
	Name          string
	Email         string
	Body          string
	AntiSpamToken string
	SourceAddress string
}

// ContactRequest is the JSON body accepted on POST /api/contact.
type ContactRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Message        string `json:"message"`
	TurnstileToken string `json:"turnstileToken"`
}

// Inbound converts the wire body into an InboundMessage for the given
// caller address.
func (r ContactRequest) Inbound(sourceAddress string) InboundMessage {
	return InboundMessage{
		Name:          r.Name,
		Email:         r.Email,
		Body:          r.Message,
		AntiSpamToken: r.TurnstileToken,
		SourceAddress: sourceAddress,
	}
}

// ContactResponse is the success body returned to the caller.
type ContactResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// EmailAddress represents a sender or recipient with an address and optional name.
type EmailAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

// OutboundEmail is the provider-agnostic message handed to a delivery
// transport.
type OutboundEmail struct {
	To      []EmailAddress `json:"to"`
	From    EmailAddress   `json:"from"`
	Subject string         `json:"subject"`
	HTML    string         `json:"html"`
	Text    string         `json:"text"`
	ReplyTo *EmailAddress  `json:"reply_to,omitempty"`
}

// VerificationResult is the anti-spam verdict for one token.
type VerificationResult struct {
	Passed          bool
	DiagnosticCodes []string
	Hostname        string
	ChallengeTS     time.Time
}

// DeliveryOutcome describes the end state of a delivery after the first
// success or after retries are exhausted.
type DeliveryOutcome struct {
	Delivered         bool
	Provider          string
	ProviderMessageID string
	Attempts          int
	// FailureReason holds the low-level transport error. It is meant for
	// logs and error reports only and must never reach the caller.
	FailureReason string
}
