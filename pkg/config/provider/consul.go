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


package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hashicorp/consul/api"
)

// ConsulProvider reads config from a Consul KV key and watches it with
// blocking queries.
type ConsulProvider struct {
	kv  *api.KV
	key string

	mu       sync.Mutex
	watching bool
	closed   bool
}

// NewConsulProvider connects to the agent at endpoints[0]. Without
// endpoints the Consul defaults apply (CONSUL_HTTP_ADDR or
// 127.0.0.1:8500).
func NewConsulProvider(endpoints []string, key string) (*ConsulProvider, error) {
	if key == "" {
		return nil, fmt.Errorf("consul key is required")
	}

	cfg := api.DefaultConfig()
	if len(endpoints) > 0 {
		cfg.Address = endpoints[0]
	}
	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}

	return &ConsulProvider{kv: client.KV(), key: key}, nil
}

// Type returns TypeConsul.
func (p *ConsulProvider) Type() Type {
	return TypeConsul
}

// Load reads the key's value.
func (p *ConsulProvider) Load(ctx context.Context) ([]byte, error) {
	pair, _, err := p.kv.Get(p.key, (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to read consul key %s: %w", p.key, err)
	}
	if pair == nil {
		return nil, fmt.Errorf("consul key %s not found", p.key)
	}
	return pair.Value, nil
}

// Watch signals whenever the key's modify index advances. The channel
// closes when ctx is done.
func (p *ConsulProvider) Watch(ctx context.Context) (<-chan struct{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, fmt.Errorf("provider is closed")
	}
	if p.watching {
		return nil, fmt.Errorf("already watching %s", p.key)
	}
	p.watching = true

	ch := make(chan struct{}, 1)
	go p.watchLoop(ctx, ch)

	slog.Info("Watching consul key", "key", p.key)
	return ch, nil
}

func (p *ConsulProvider) watchLoop(ctx context.Context, ch chan struct{}) {
	defer close(ch)

	var index uint64
	for {
		opts := (&api.QueryOptions{WaitIndex: index}).WithContext(ctx)
		_, meta, err := p.kv.Get(p.key, opts)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			slog.Error("Consul watch error", "key", p.key, "error", err)
			if !sleepCtx(ctx, retryDelay) {
				return
			}
			continue
		}

		switch {
		case meta.LastIndex < index:
			// The index went backwards, e.g. after a snapshot restore.
			index = 0
		case index != 0 && meta.LastIndex > index:
			slog.Debug("Consul key changed", "key", p.key, "index", meta.LastIndex)
			notify(ch)
			index = meta.LastIndex
		default:
			index = meta.LastIndex
		}
	}
}

// Close stops future watches. The HTTP client holds no connections that
// need releasing.
func (p *ConsulProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

var _ Provider = (*ConsulProvider)(nil)
