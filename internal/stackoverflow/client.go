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

// Package stackoverflow searches StackExchange for community answers.
// The adapter self-limits to one API call per second and translates the
// API's throttling and validation responses into typed errors.
package stackoverflow

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ocxlabs/ocx/pkg/errors"
	"github.com/ocxlabs/ocx/pkg/httpclient"
)

const (
	defaultBaseURL = "https://api.stackexchange.com/2.3"
	defaultSite    = "stackoverflow"

	// maxPageSize is the largest result page requested from the API.
	maxPageSize = 10

	// requestDelay spaces successive API calls apart.
	requestDelay = time.Second

	// enrichTopN bounds how many search results get their answers fetched.
	enrichTopN = 3
)

// Config configures the search adapter. The zero value selects the public
// StackExchange endpoint.
type Config struct {
	// BaseURL overrides the API endpoint (tests).
	BaseURL string

	// Site selects the StackExchange site (defaults to "stackoverflow").
	Site string

	// Timeout is the per-request HTTP timeout (defaults to 10s).
	Timeout time.Duration

	// Logger is used for structured logging (optional).
	Logger *slog.Logger
}

// Service is a rate-limited StackExchange search client.
type Service struct {
	baseURL string
	site    string
	http    *http.Client
	limiter *slotLimiter
	logger  *slog.Logger
}

// New creates the search adapter.
func New(cfg Config) (*Service, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	site := cfg.Site
	if site == "" {
		site = defaultSite
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	hcfg := httpclient.DefaultConfig()
	hcfg.Timeout = timeout
	hcfg.UserAgent = "ocx-assistant/2.0"
	// The API's throttling responses are translated, not retried; the
	// slot limiter already paces outbound calls.
	hcfg.RetryAttempts = 0

	client, err := httpclient.New(hcfg)
	if err != nil {
		return nil, err
	}

	return &Service{
		baseURL: strings.TrimRight(baseURL, "/"),
		site:    site,
		http:    client,
		limiter: newSlotLimiter(requestDelay),
		logger:  logger,
	}, nil
}

// Search runs a relevance-ordered full-text search and enriches the top
// results with their answers. A per-question answer fetch failure leaves
// that question without answers rather than failing the whole search.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]Question, error) {
	params := url.Values{
		"order":    {"desc"},
		"sort":     {"relevance"},
		"q":        {query},
		"site":     {s.site},
		"pagesize": {strconv.Itoa(clampPageSize(limit))},
		"filter":   {"withbody"},
	}

	var env envelope[Question]
	if err := s.get(ctx, "/search/advanced", params, &env); err != nil {
		return nil, err
	}

	questions := cleanQuestions(env.Items)
	for i := range questions {
		if i >= enrichTopN {
			break
		}
		answers, err := s.AnswersFor(ctx, questions[i].QuestionID)
		if err != nil {
			s.logger.Warn("skipping answers for question",
				"question_id", questions[i].QuestionID, "error", err)
			continue
		}
		questions[i].Answers = answers
	}

	return questions, nil
}

// QuestionByID fetches one question with its answers. Unknown identifiers
// return nil without error.
func (s *Service) QuestionByID(ctx context.Context, questionID int) (*Question, error) {
	params := url.Values{
		"site":   {s.site},
		"filter": {"withbody"},
	}

	var env envelope[Question]
	if err := s.get(ctx, fmt.Sprintf("/questions/%d", questionID), params, &env); err != nil {
		return nil, err
	}
	if len(env.Items) == 0 {
		return nil, nil
	}

	q := cleanQuestions(env.Items[:1])[0]
	answers, err := s.AnswersFor(ctx, questionID)
	if err != nil {
		s.logger.Warn("skipping answers for question", "question_id", questionID, "error", err)
	} else {
		q.Answers = answers
	}
	return &q, nil
}

// AnswersFor fetches the highest-voted answers to a question.
func (s *Service) AnswersFor(ctx context.Context, questionID int) ([]Answer, error) {
	params := url.Values{
		"site":     {s.site},
		"order":    {"desc"},
		"sort":     {"votes"},
		"filter":   {"withbody"},
		"pagesize": {"5"},
	}

	var env envelope[Answer]
	if err := s.get(ctx, fmt.Sprintf("/questions/%d/answers", questionID), params, &env); err != nil {
		return nil, err
	}

	answers := env.Items
	for i := range answers {
		answers[i].Body = CleanHTML(answers[i].Body)
	}
	return answers, nil
}

// SearchWithTags runs a vote-ordered search constrained to the given tags.
func (s *Service) SearchWithTags(ctx context.Context, tags []string, query string, limit int) ([]Question, error) {
	params := url.Values{
		"order":    {"desc"},
		"sort":     {"votes"},
		"tagged":   {strings.Join(tags, ";")},
		"site":     {s.site},
		"pagesize": {strconv.Itoa(clampPageSize(limit))},
		"filter":   {"withbody"},
	}
	if query != "" {
		params.Set("q", query)
	}

	var env envelope[Question]
	if err := s.get(ctx, "/questions", params, &env); err != nil {
		return nil, err
	}
	return cleanQuestions(env.Items), nil
}

// TopAnswersForTopic collects the best answers across the top questions for
// a topic, biased toward the container platform domain. Failures yield an
// empty result rather than an error.
func (s *Service) TopAnswersForTopic(ctx context.Context, topic string) []Answer {
	questions, err := s.Search(ctx, topic+" openshift kubernetes", enrichTopN)
	if err != nil {
		s.logger.Warn("top answers search failed", "topic", topic, "error", err)
		return nil
	}

	var answers []Answer
	for _, q := range questions {
		top := q.Answers
		if len(top) > 2 {
			top = top[:2]
		}
		answers = append(answers, top...)
	}

	sort.Slice(answers, func(i, j int) bool { return answers[i].Score > answers[j].Score })
	if len(answers) > 5 {
		answers = answers[:5]
	}
	return answers
}

// Available reports whether the API endpoint is reachable.
func (s *Service) Available(ctx context.Context) bool {
	params := url.Values{"site": {s.site}}
	var env envelope[json.RawMessage]
	return s.get(ctx, "/info", params, &env) == nil
}

// get performs one rate-limited API call and decodes the response envelope.
func (s *Service) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := s.limiter.wait(ctx); err != nil {
		return err
	}

	u := s.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	s.logger.Debug("stackexchange request", "path", path)

	resp, err := s.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "searching StackOverflow")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &errors.RateLimitError{Service: "stackexchange", RetryAfter: retryAfter(resp)}
	case resp.StatusCode == http.StatusBadRequest:
		return &errors.ValidationError{
			Field:      "query",
			Message:    "the search API rejected the query",
			Suggestion: "Refine your search terms.",
		}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("stackexchange responded with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "reading search response")
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "decoding search response")
	}
	return nil
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

func clampPageSize(limit int) int {
	if limit <= 0 || limit > maxPageSize {
		return maxPageSize
	}
	return limit
}

func cleanQuestions(items []Question) []Question {
	for i := range items {
		items[i].Body = CleanHTML(items[i].Body)
		if items[i].Tags == nil {
			items[i].Tags = []string{}
		}
	}
	return items
}

// BuildQuery biases a free-text query toward the container platform domain
// when the user text lacks any domain keyword.
func BuildQuery(userQuery string) string {
	keywords := []string{"openshift", "kubernetes", "k8s", "redhat", "container"}
	lower := strings.ToLower(userQuery)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return userQuery
		}
	}
	return userQuery + " openshift kubernetes"
}

// RelevantTags derives search tags from the query text, always including
// the common platform tags.
func RelevantTags(query string) []string {
	tags := []string{"openshift", "kubernetes", "docker", "containers"}
	lower := strings.ToLower(query)

	has := func(subs ...string) bool {
		for _, sub := range subs {
			if strings.Contains(lower, sub) {
				return true
			}
		}
		return false
	}

	if has("route", "ingress") {
		tags = append(tags, "routing", "networking")
	}
	if has("pod", "deployment") {
		tags = append(tags, "pod", "deployment")
	}
	if has("service") {
		tags = append(tags, "service", "networking")
	}
	if has("storage", "volume") {
		tags = append(tags, "storage", "persistent-volumes")
	}
	if has("security", "rbac") {
		tags = append(tags, "security", "authentication")
	}

	seen := make(map[string]bool, len(tags))
	uniq := tags[:0]
	for _, tag := range tags {
		if !seen[tag] {
			seen[tag] = true
			uniq = append(uniq, tag)
		}
	}
	return uniq
}
