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

package chat

import (
	"fmt"
	"io"
	"sync"
)

// ResponseStream receives the assistant's reply as it is produced.
// Markdown fragments are emitted incrementally; Progress lines are
// transient status updates a renderer may show or drop.
type ResponseStream interface {
	Markdown(text string)
	Progress(message string)
}

// WriterStream writes markdown straight to an io.Writer and drops
// progress updates. Used by serve mode and one-shot commands.
type WriterStream struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterStream returns a stream writing to w.
func NewWriterStream(w io.Writer) *WriterStream {
	return &WriterStream{w: w}
}

// Markdown implements ResponseStream.
func (s *WriterStream) Markdown(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprint(s.w, text)
}

// Progress implements ResponseStream. One-shot output has nowhere to
// show transient status, so it is discarded.
func (s *WriterStream) Progress(string) {}
