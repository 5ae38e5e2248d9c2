// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package constants

const (
	// NotificationPriority is the priority suffix appended to notification subjects
	NotificationPriority = "info"

	// DefaultNotificationQueue is the queue group shared by listener replicas
	DefaultNotificationQueue = "lfx-search-gateway"

	// DefaultIndexChangesSubject receives a message for every document the gateway writes
	DefaultIndexChangesSubject = "lfx.search.index_changes"

	// OsloMessageKey wraps the serialized notification in messaging v2 envelopes
	OsloMessageKey = "oslo.message"

	// OsloContextPrefix marks request-context keys inside notification envelopes
	OsloContextPrefix = "_context_"
)
