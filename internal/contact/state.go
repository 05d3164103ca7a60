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

// State is a step of the request state machine. Transitions only move
// forward; StateFailed is reachable from every non-terminal state.
type State int

const (
	StateReceived State = iota
	StateValidating
	StateVerifyingAntiSpam
	StateCheckingRateLimit
	StateDelivering
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateValidating:
		return "validating"
	case StateVerifyingAntiSpam:
		return "verifying_anti_spam"
	case StateCheckingRateLimit:
		return "checking_rate_limit"
	case StateDelivering:
		return "delivering"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}
