/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and besu-devnet-manager contributors
SPDX-License-Identifier: Apache-2.0
*/

package backoff

import (
	"sync"
	"time"

	"k8s.io/client-go/util/workqueue"
)

type attempt struct {
	Item     string
	Activity string
}

// Backoff tracks exponentially growing retry delays per item. The delay for
// an item grows while it keeps retrying the same activity, and resets when
// the activity changes or the item is forgotten.
type Backoff struct {
	lock       sync.Mutex
	activities map[string]string
	limiter    workqueue.TypedRateLimiter[attempt]
}

func NewBackoff(initialDelay time.Duration, maxDelay time.Duration) *Backoff {
	return &Backoff{
		activities: make(map[string]string),
		limiter:    workqueue.NewTypedItemExponentialFailureRateLimiter[attempt](initialDelay, maxDelay),
	}
}

// Next returns the delay to wait before item may retry the given activity.
func (b *Backoff) Next(item string, activity string) time.Duration {
	b.lock.Lock()
	defer b.lock.Unlock()

	if active, ok := b.activities[item]; ok && active != activity {
		b.limiter.Forget(attempt{Item: item, Activity: active})
	}

	b.activities[item] = activity
	return b.limiter.When(attempt{Item: item, Activity: activity})
}

// Forget clears the backoff state of item.
func (b *Backoff) Forget(item string) {
	b.lock.Lock()
	defer b.lock.Unlock()

	if active, ok := b.activities[item]; ok {
		b.limiter.Forget(attempt{Item: item, Activity: active})
	}

	delete(b.activities, item)
}
