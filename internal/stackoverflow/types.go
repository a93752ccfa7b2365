// Copyright 2025 The ocx Authors
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

package stackoverflow

// Question is one StackExchange search result. Field names follow the
// API's wire shape; Body is HTML-cleaned plain text.
type Question struct {
	QuestionID       int      `json:"question_id"`
	Title            string   `json:"title"`
	Score            int      `json:"score"`
	AnswerCount      int      `json:"answer_count"`
	Tags             []string `json:"tags"`
	CreationDate     int64    `json:"creation_date"`
	LastActivityDate int64    `json:"last_activity_date"`
	IsAnswered       bool     `json:"is_answered"`
	AcceptedAnswerID int      `json:"accepted_answer_id,omitempty"`
	Link             string   `json:"link"`
	Body             string   `json:"body,omitempty"`
	Answers          []Answer `json:"answers,omitempty"`
}

// Answer is one answer to a question, highest-voted first.
type Answer struct {
	AnswerID     int    `json:"answer_id"`
	Score        int    `json:"score"`
	IsAccepted   bool   `json:"is_accepted"`
	CreationDate int64  `json:"creation_date"`
	Body         string `json:"body,omitempty"`
}

// envelope is the StackExchange API response wrapper.
type envelope[T any] struct {
	Items []T `json:"items"`
}
