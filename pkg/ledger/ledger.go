// Package ledger implements the pure merge that reconciles message
// batches arriving from the history-pull and live-push paths into one
// deduplicated, chronologically ordered collection. Because ordering
// derives from SentAt rather than arrival order, interleaving batches
// in any order converges to the same ledger.
package ledger

import (
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	domainMessage "github.com/kolibrisuite/chatsync/domains/message"
)

// ValidKey rejects the deduplication keys the legacy clients were
// known to produce for broken records.
func ValidKey(messageID string) bool {
	switch strings.TrimSpace(messageID) {
	case "", "null", "undefined":
		return false
	}
	return true
}

// UpsertBatch merges incoming into existing: candidates with an
// invalid or already-present MessageID are skipped, survivors are
// appended, and the result is stable-sorted ascending by SentAt.
// Neither input slice is mutated.
func UpsertBatch(existing, incoming []domainMessage.Message) []domainMessage.Message {
	merged := make([]domainMessage.Message, 0, len(existing)+len(incoming))
	seen := make(map[string]struct{}, len(existing)+len(incoming))

	for _, m := range existing {
		if !ValidKey(m.MessageID) {
			logrus.Debugf("[LEDGER] Skipping record with invalid message id %q", m.MessageID)
			continue
		}
		if _, dup := seen[m.MessageID]; dup {
			continue
		}
		seen[m.MessageID] = struct{}{}
		merged = append(merged, m)
	}

	for _, m := range incoming {
		if !ValidKey(m.MessageID) {
			logrus.Debugf("[LEDGER] Rejecting candidate with invalid message id %q", m.MessageID)
			continue
		}
		if _, dup := seen[m.MessageID]; dup {
			logrus.Debugf("[LEDGER] Duplicate message %s, skipping", m.MessageID)
			continue
		}
		seen[m.MessageID] = struct{}{}
		merged = append(merged, m)
	}

	// Stable: ties keep relative insertion order.
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].SentAt.Before(merged[j].SentAt)
	})

	return merged
}

// UpsertOne merges a single message.
func UpsertOne(existing []domainMessage.Message, m domainMessage.Message) []domainMessage.Message {
	return UpsertBatch(existing, []domainMessage.Message{m})
}

// Descending returns a newest-first copy for display.
func Descending(msgs []domainMessage.Message) []domainMessage.Message {
	out := make([]domainMessage.Message, len(msgs))
	for i, m := range msgs {
		out[len(msgs)-1-i] = m
	}
	return out
}
