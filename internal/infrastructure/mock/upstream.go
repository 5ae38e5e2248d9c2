// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mock

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"

	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/port"
	"github.com/linuxfoundation/lfx-v2-search-gateway/pkg/errors"
)

func seq(items []map[string]any, err error) iter.Seq2[map[string]any, error] {
	return func(yield func(map[string]any, error) bool) {
		for _, item := range items {
			if !yield(item, nil) {
				return
			}
		}
		if err != nil {
			yield(nil, err)
		}
	}
}

// MockImageSource serves images and memberships from memory.
type MockImageSource struct {
	mu      sync.Mutex
	images  []map[string]any
	members map[string][]map[string]any

	staleSessions   int
	membersErr      error
	memberCalls     int
	reauthenticated int
}

// NewMockImageSource creates an empty image source.
func NewMockImageSource() *MockImageSource {
	return &MockImageSource{members: map[string][]map[string]any{}}
}

var _ port.ImageSource = (*MockImageSource)(nil)

// AddImage registers an image with its members.
func (m *MockImageSource) AddImage(image map[string]any, members ...map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images = append(m.images, image)
	m.members[fmt.Sprint(image["id"])] = members
}

// SetStaleSessions makes the next n member listings fail as unauthorized
// until Reauthenticate is called.
func (m *MockImageSource) SetStaleSessions(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staleSessions = n
}

// SetMembersError makes member listings fail with err.
func (m *MockImageSource) SetMembersError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.membersErr = err
}

// MemberCalls returns how many member listings were requested.
func (m *MockImageSource) MemberCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.memberCalls
}

// Reauthentications returns how many times the session was renewed.
func (m *MockImageSource) Reauthentications() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reauthenticated
}

func (m *MockImageSource) ListImages(ctx context.Context) iter.Seq2[map[string]any, error] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return seq(slices.Clone(m.images), nil)
}

func (m *MockImageSource) GetImage(ctx context.Context, id string) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, image := range m.images {
		if fmt.Sprint(image["id"]) == id {
			return image, nil
		}
	}
	return nil, errors.NewNotFound(fmt.Sprintf("image %s not found", id))
}

func (m *MockImageSource) ListImageMembers(ctx context.Context, imageID string) ([]map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.memberCalls++
	if m.staleSessions > 0 {
		m.staleSessions--
		return nil, errors.NewUnauthorized("session expired")
	}
	if m.membersErr != nil {
		return nil, m.membersErr
	}
	return m.members[imageID], nil
}

func (m *MockImageSource) Reauthenticate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reauthenticated++
	return nil
}

// MockComputeSource serves servers from memory.
type MockComputeSource struct {
	mu      sync.Mutex
	servers []map[string]any
}

// NewMockComputeSource creates an empty compute source.
func NewMockComputeSource() *MockComputeSource {
	return &MockComputeSource{}
}

var _ port.ComputeSource = (*MockComputeSource)(nil)

// AddServer registers a server.
func (m *MockComputeSource) AddServer(server map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.servers = append(m.servers, server)
}

// RemoveServer forgets a server, as if it had been deleted upstream.
func (m *MockComputeSource) RemoveServer(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.servers = slices.DeleteFunc(m.servers, func(server map[string]any) bool {
		return fmt.Sprint(server["id"]) == id
	})
}

func (m *MockComputeSource) ListServers(ctx context.Context) iter.Seq2[map[string]any, error] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return seq(slices.Clone(m.servers), nil)
}

func (m *MockComputeSource) GetServer(ctx context.Context, id string) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, server := range m.servers {
		if fmt.Sprint(server["id"]) == id {
			return server, nil
		}
	}
	return nil, errors.NewNotFound(fmt.Sprintf("server %s not found", id))
}

// MockDNSSource serves zones and recordsets from memory.
type MockDNSSource struct {
	mu         sync.Mutex
	zones      []map[string]any
	recordSets map[string][]map[string]any
	listErr    error
}

// NewMockDNSSource creates an empty DNS source.
func NewMockDNSSource() *MockDNSSource {
	return &MockDNSSource{recordSets: map[string][]map[string]any{}}
}

var _ port.DNSSource = (*MockDNSSource)(nil)

// AddZone registers a zone with its recordsets.
func (m *MockDNSSource) AddZone(zone map[string]any, recordSets ...map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.zones = append(m.zones, zone)
	m.recordSets[fmt.Sprint(zone["id"])] = recordSets
}

// SetListError makes recordset listings fail with err.
func (m *MockDNSSource) SetListError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listErr = err
}

func (m *MockDNSSource) ListZones(ctx context.Context) iter.Seq2[map[string]any, error] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return seq(slices.Clone(m.zones), nil)
}

func (m *MockDNSSource) ListRecordSets(ctx context.Context, zoneID string) iter.Seq2[map[string]any, error] {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return seq(nil, m.listErr)
	}
	return seq(slices.Clone(m.recordSets[zoneID]), nil)
}
