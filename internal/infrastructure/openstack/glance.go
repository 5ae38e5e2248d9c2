// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package openstack

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strconv"

	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/port"
)

// ImageClient reads images and their members from the image service.
type ImageClient struct {
	session *Session
}

var _ port.ImageSource = (*ImageClient)(nil)

func (c *ImageClient) ListImages(ctx context.Context) iter.Seq2[map[string]any, error] {
	first := endpoint(c.session.config.GlanceURL, "v2", "images") + "?limit=" + strconv.Itoa(c.session.config.PageSize)
	return c.session.paginate(ctx, first, nil, func(body []byte) ([]map[string]any, string, error) {
		var p imagePage
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, "", err
		}
		return p.Images, p.Next, nil
	})
}

func (c *ImageClient) GetImage(ctx context.Context, id string) (map[string]any, error) {
	var image map[string]any
	if err := c.session.get(ctx, endpoint(c.session.config.GlanceURL, "v2", "images", id), nil, &image); err != nil {
		return nil, err
	}
	return image, nil
}

// ListImageMembers returns errors.Unauthorized when the token has expired.
// The request is sent once; the caller decides whether to retry.
func (c *ImageClient) ListImageMembers(ctx context.Context, imageID string) ([]map[string]any, error) {
	var members memberList
	if err := c.session.getOnce(ctx, endpoint(c.session.config.GlanceURL, "v2", "images", imageID, "members"), nil, &members); err != nil {
		return nil, err
	}
	if members.Members == nil {
		return []map[string]any{}, nil
	}
	return members.Members, nil
}

// Reauthenticate replaces the session token.
func (c *ImageClient) Reauthenticate(ctx context.Context) error {
	c.session.Invalidate()
	if _, err := c.session.Token(ctx); err != nil {
		return fmt.Errorf("failed to reauthenticate: %w", err)
	}
	return nil
}

func NewImageClient(session *Session) *ImageClient {
	return &ImageClient{session: session}
}
