/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and besu-devnet-manager contributors
SPDX-License-Identifier: Apache-2.0
*/

package events

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/tools/record"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// Events repeated for the same object within this window are swallowed.
const deduplicationWindow = 5 * time.Minute

// DeduplicatingRecorder wraps an EventRecorder, dropping events which are
// identical to the previous event recorded for the same object. The apply
// and delete loops run until the inventory settles, so without deduplication
// every polling round would emit the same event again.
type DeduplicatingRecorder struct {
	recorder record.EventRecorder
	mutex    sync.Mutex
	events   map[string]event
}

type event struct {
	digest    string
	timestamp time.Time
}

func NewDeduplicatingRecorder(recorder record.EventRecorder) *DeduplicatingRecorder {
	return &DeduplicatingRecorder{
		recorder: recorder,
		events:   make(map[string]event),
	}
}

func (r *DeduplicatingRecorder) Event(object runtime.Object, eventType string, reason string, message string) {
	if r.isDuplicate(object, nil, eventType, reason, message) {
		return
	}
	r.recorder.Event(object, eventType, reason, message)
}

func (r *DeduplicatingRecorder) Eventf(object runtime.Object, eventType string, reason string, messageFmt string, args ...any) {
	if r.isDuplicate(object, nil, eventType, reason, fmt.Sprintf(messageFmt, args...)) {
		return
	}
	r.recorder.Eventf(object, eventType, reason, messageFmt, args...)
}

func (r *DeduplicatingRecorder) AnnotatedEventf(object runtime.Object, annotations map[string]string, eventType string, reason string, messageFmt string, args ...any) {
	if r.isDuplicate(object, annotations, eventType, reason, fmt.Sprintf(messageFmt, args...)) {
		return
	}
	r.recorder.AnnotatedEventf(object, annotations, eventType, reason, messageFmt, args...)
}

func (r *DeduplicatingRecorder) isDuplicate(object runtime.Object, annotations map[string]string, eventType string, reason string, message string) bool {
	var uid string
	if obj, ok := object.(client.Object); ok {
		uid = string(obj.GetUID())
	}
	digest := calculateDigest(annotations, eventType, reason, message)
	now := time.Now()
	expiry := now.Add(-deduplicationWindow)

	r.mutex.Lock()
	defer r.mutex.Unlock()
	for uid, event := range r.events {
		if event.timestamp.Before(expiry) {
			delete(r.events, uid)
		}
	}
	if r.events[uid].digest == digest {
		return true
	}
	r.events[uid] = event{digest: digest, timestamp: now}
	return false
}

func calculateDigest(values ...any) string {
	// note: the inputs are strings and string maps, so marshalling cannot fail
	raw, err := json.Marshal(values)
	if err != nil {
		panic(err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
