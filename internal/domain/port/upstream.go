// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package port

import (
	"context"
	"iter"
)

// ImageSource is the image service the image plugin reads from.
type ImageSource interface {
	ListImages(ctx context.Context) iter.Seq2[map[string]any, error]
	GetImage(ctx context.Context, id string) (map[string]any, error)
	// ListImageMembers returns errors.Unauthorized when the session is stale
	ListImageMembers(ctx context.Context, imageID string) ([]map[string]any, error)
	// Reauthenticate drops the cached session so the next call obtains a new one
	Reauthenticate(ctx context.Context) error
}

// ComputeSource is the compute service the server plugin reads from.
type ComputeSource interface {
	ListServers(ctx context.Context) iter.Seq2[map[string]any, error]
	// GetServer returns errors.NotFound when the server no longer exists
	GetServer(ctx context.Context, id string) (map[string]any, error)
}

// DNSSource is the DNS service the zone and recordset plugins read from.
type DNSSource interface {
	ListZones(ctx context.Context) iter.Seq2[map[string]any, error]
	ListRecordSets(ctx context.Context, zoneID string) iter.Seq2[map[string]any, error]
}
