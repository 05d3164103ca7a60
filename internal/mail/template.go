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
	"html/template"
	"strings"

	"github.com/jearle/portfolio-contact/internal/models"
)

var notificationHTML = template.Must(template.New("notification").Parse(
	`<h2>New contact form submission</h2>
<p><strong>Name:</strong> {{.Name}}</p>
<p><strong>Email:</strong> <a href="mailto:{{.Email}}">{{.Email}}</a></p>
<p><strong>Message:</strong></p>
<p>{{range $i, $line := .Lines}}{{if $i}}<br>{{end}}{{$line}}{{end}}</p>
`))

// BuildNotification renders the email sent to the site owner for a
// validated submission. Replies go to the submitter.
func BuildNotification(msg models.InboundMessage, from, to models.EmailAddress, subjectPrefix string) (*models.OutboundEmail, error) {
	var html bytes.Buffer
	err := notificationHTML.Execute(&html, struct {
		Name  string
		Email string
		Lines []string
	}{
		Name:  msg.Name,
		Email: msg.Email,
		Lines: strings.Split(msg.Body, "\n"),
	})
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	text.WriteString("New contact form submission\n\n")
	text.WriteString("Name: " + msg.Name + "\n")
	text.WriteString("Email: " + msg.Email + "\n\n")
	text.WriteString(msg.Body + "\n")

	subject := "New message from " + msg.Name
	if subjectPrefix != "" {
		subject = subjectPrefix + " " + subject
	}

	return &models.OutboundEmail{
		To:      []models.EmailAddress{to},
		From:    from,
		Subject: subject,
		HTML:    html.String(),
		Text:    text.String(),
		ReplyTo: &models.EmailAddress{Address: msg.Email, Name: msg.Name},
	}, nil
}
