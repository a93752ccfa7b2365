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

import (
	"context"
	"sync"
	"time"
)

// slotLimiter spaces outbound calls at least one interval apart. It records
// only the timestamp of the last call; callers arriving early sleep out the
// remainder. There is no queue, so concurrent callers are not serialized
// beyond that delay.
type slotLimiter struct {
	interval time.Duration

	// now and sleep are overridable for tests.
	now   func() time.Time
	sleep func(context.Context, time.Duration) error

	mu   sync.Mutex
	last time.Time
}

func newSlotLimiter(interval time.Duration) *slotLimiter {
	return &slotLimiter{
		interval: interval,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// wait blocks until at least one interval has passed since the previous
// call, or ctx is cancelled.
func (l *slotLimiter) wait(ctx context.Context) error {
	l.mu.Lock()
	remaining := l.interval - l.now().Sub(l.last)
	l.mu.Unlock()

	if remaining > 0 {
		if err := l.sleep(ctx, remaining); err != nil {
			return err
		}
	}

	l.mu.Lock()
	l.last = l.now()
	l.mu.Unlock()
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
