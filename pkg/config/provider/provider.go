// Copyright 2025 Kadir Pekel
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

// Package provider supplies raw configuration bytes to the config loader
// and signals when they change.
//
// Besides local files, configuration may live under a key in Consul or
// etcd, or under a ZooKeeper node.
package provider

import (
	"context"
	"fmt"
	"time"
)

// Type identifies a provider implementation.
type Type string

const (
	TypeFile      Type = "file"
	TypeConsul    Type = "consul"
	TypeEtcd      Type = "etcd"
	TypeZookeeper Type = "zookeeper"
)

// DefaultDialTimeout bounds connecting to a remote store.
const DefaultDialTimeout = 5 * time.Second

// retryDelay spaces out failed remote watch attempts.
var retryDelay = 2 * time.Second

// ParseType parses a provider name. The empty name means file.
func ParseType(s string) (Type, error) {
	switch s {
	case "file", "":
		return TypeFile, nil
	case "consul":
		return TypeConsul, nil
	case "etcd":
		return TypeEtcd, nil
	case "zookeeper", "zk":
		return TypeZookeeper, nil
	default:
		return "", fmt.Errorf("unknown provider type: %s (valid: file, consul, etcd, zookeeper)", s)
	}
}

// Provider loads configuration bytes and signals changes.
type Provider interface {
	// Type returns the provider type for logging/debugging.
	Type() Type

	// Load reads raw config bytes from the source.
	Load(ctx context.Context) ([]byte, error)

	// Watch starts watching for changes and signals via the returned channel.
	// The channel receives a value when config changes.
	// Cancel the context to stop watching.
	// Returns nil channel if watching is not supported.
	Watch(ctx context.Context) (<-chan struct{}, error)

	// Close releases any resources held by the provider.
	Close() error
}

// ProviderConfig selects and configures a provider.
type ProviderConfig struct {
	// Type specifies the provider type.
	Type Type

	// Path is the config file path, the Consul or etcd key, or the
	// ZooKeeper node.
	Path string

	// Endpoints of the remote store. Consul uses the first one.
	Endpoints []string

	// DialTimeout bounds connecting to a remote store.
	// Default: 5s
	DialTimeout time.Duration
}

// New creates the provider described by opts.
func New(opts ProviderConfig) (Provider, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("config path is required")
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = DefaultDialTimeout
	}

	switch opts.Type {
	case TypeFile, "":
		return NewFileProvider(opts.Path)
	case TypeConsul:
		return NewConsulProvider(opts.Endpoints, opts.Path)
	case TypeEtcd:
		return NewEtcdProvider(opts.Endpoints, opts.Path, opts.DialTimeout)
	case TypeZookeeper:
		return NewZookeeperProvider(opts.Endpoints, opts.Path, opts.DialTimeout)
	default:
		return nil, fmt.Errorf("unknown provider type: %s", opts.Type)
	}
}

// notify delivers a change signal unless one is already pending.
func notify(ch chan<- struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// sleepCtx waits d or until ctx is done and reports whether to go on.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
