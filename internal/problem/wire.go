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

package problem

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// WireFormat returns the problem as {type, title, status, detail, instance?,
// ...extensions} using typeBase as the category URI prefix. An empty
// typeBase selects DefaultTypeBase.
func (p *Problem) WireFormat(typeBase string) map[string]any {
	if typeBase == "" {
		typeBase = DefaultTypeBase
	}
	out := map[string]any{
		"type":   typeBase + p.kind.Suffix(),
		"title":  p.Title(),
		"status": p.Status(),
		"detail": p.Detail(),
	}
	if p.instance != "" {
		out["instance"] = p.instance
	}
	for k, v := range p.Extensions() {
		out[k] = v
	}
	return out
}

// Response is the transport-level rendering of a problem.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Response renders the status code, headers and body for p. RateLimited
// problems carry a Retry-After header equal to RetryAfterSeconds.
func (p *Problem) Response(typeBase string) (Response, error) {
	body, err := json.Marshal(p.WireFormat(typeBase))
	if err != nil {
		return Response{}, err
	}
	h := http.Header{}
	h.Set("Content-Type", ContentType)
	if p.kind == KindRateLimited {
		h.Set("Retry-After", strconv.Itoa(p.retryAfter))
	}
	return Response{Status: p.Status(), Header: h, Body: body}, nil
}

// Write renders p onto w.
func (p *Problem) Write(w http.ResponseWriter, typeBase string) error {
	resp, err := p.Response(typeBase)
	if err != nil {
		return err
	}
	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.Status)
	_, err = w.Write(resp.Body)
	return err
}
