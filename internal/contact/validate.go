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

package contact

import (
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/asaskevich/govalidator"

	"github.com/jearle/portfolio-contact/internal/models"
)

// Field limits for a submission, counted in characters after trimming.
const (
	MaxNameLength    = 100
	MinMessageLength = 10
	MaxMessageLength = 2000
	maxEmailLength   = 254
)

// Wire field names used as fieldErrors keys.
const (
	FieldName    = "name"
	FieldEmail   = "email"
	FieldMessage = "message"
	FieldToken   = "turnstileToken"
)

// Validate trims and normalises msg and checks every field. It returns the
// normalised message and, when anything is wrong, the messages per field.
// All fields are checked so the caller sees every problem at once.
func Validate(msg models.InboundMessage) (models.InboundMessage, map[string][]string) {
	out := models.InboundMessage{
		Name:          strings.TrimSpace(msg.Name),
		Email:         strings.ToLower(strings.TrimSpace(msg.Email)),
		Body:          strings.TrimSpace(msg.Body),
		AntiSpamToken: strings.TrimSpace(msg.AntiSpamToken),
		SourceAddress: msg.SourceAddress,
	}

	errs := map[string][]string{}
	add := func(field, text string) { errs[field] = append(errs[field], text) }

	switch n := utf8.RuneCountInString(out.Name); {
	case n == 0:
		add(FieldName, "Name is required")
	case n > MaxNameLength:
		add(FieldName, "Name must be at most 100 characters")
	}
	if strings.IndexFunc(out.Name, unicode.IsControl) >= 0 {
		add(FieldName, "Name contains invalid characters")
	}

	if out.Email == "" {
		add(FieldEmail, "Email is required")
	} else if !validEmail(out.Email) {
		add(FieldEmail, "Invalid email address")
	}

	switch n := utf8.RuneCountInString(out.Body); {
	case n == 0:
		add(FieldMessage, "Message is required")
	case n < MinMessageLength:
		add(FieldMessage, "Message must be at least 10 characters")
	case n > MaxMessageLength:
		add(FieldMessage, "Message must be at most 2000 characters")
	}

	if out.AntiSpamToken == "" {
		add(FieldToken, "Anti-spam verification is required")
	}

	if len(errs) == 0 {
		return out, nil
	}
	return out, errs
}

// validEmail accepts a bare addr-spec only: no display names, comments or
// angle brackets.
func validEmail(s string) bool {
	if len(s) > maxEmailLength || !govalidator.IsEmail(s) {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s && addr.Name == ""
}
