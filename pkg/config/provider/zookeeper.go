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
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-zookeeper/zk"
)

// ZookeeperProvider reads config from a ZooKeeper node and watches it.
type ZookeeperProvider struct {
	conn *zk.Conn
	path string

	mu       sync.Mutex
	watching bool
	closed   bool
}

// NewZookeeperProvider starts a session with the ensemble. The session
// connects in the background; Load blocks until it is up.
func NewZookeeperProvider(endpoints []string, path string, sessionTimeout time.Duration) (*ZookeeperProvider, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("zookeeper endpoints are required")
	}
	if path == "" {
		return nil, fmt.Errorf("zookeeper path is required")
	}

	conn, _, err := zk.Connect(endpoints, sessionTimeout, zk.WithLogger(zkLogger{}))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to zookeeper: %w", err)
	}

	return &ZookeeperProvider{conn: conn, path: path}, nil
}

// Type returns TypeZookeeper.
func (p *ZookeeperProvider) Type() Type {
	return TypeZookeeper
}

// Load reads the node's data.
func (p *ZookeeperProvider) Load(ctx context.Context) ([]byte, error) {
	data, _, err := p.conn.Get(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read zookeeper node %s: %w", p.path, err)
	}
	return data, nil
}

// Watch signals when the node's data changes or the node is created.
// ZooKeeper watches fire once, so each is re-armed after it triggers.
// The channel closes when ctx is done.
func (p *ZookeeperProvider) Watch(ctx context.Context) (<-chan struct{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, fmt.Errorf("provider is closed")
	}
	if p.watching {
		return nil, fmt.Errorf("already watching %s", p.path)
	}
	p.watching = true

	ch := make(chan struct{}, 1)
	go p.watchLoop(ctx, ch)

	slog.Info("Watching zookeeper node", "path", p.path)
	return ch, nil
}

func (p *ZookeeperProvider) watchLoop(ctx context.Context, ch chan struct{}) {
	defer close(ch)

	for {
		events, err := p.arm()
		if err != nil {
			if errors.Is(err, zk.ErrClosing) || errors.Is(err, zk.ErrConnectionClosed) {
				return
			}
			slog.Error("Zookeeper watch error", "path", p.path, "error", err)
			if !sleepCtx(ctx, retryDelay) {
				return
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			switch ev.Type {
			case zk.EventNodeDataChanged, zk.EventNodeCreated:
				notify(ch)
			case zk.EventNodeDeleted:
				slog.Warn("Zookeeper config node deleted; keeping the current config", "path", p.path)
			case zk.EventNotWatching:
				slog.Warn("Zookeeper watch lost; re-arming", "path", p.path, "error", ev.Err)
			}
		}
	}
}

// arm sets a data watch, or an existence watch while the node is absent.
func (p *ZookeeperProvider) arm() (<-chan zk.Event, error) {
	_, _, events, err := p.conn.GetW(p.path)
	if errors.Is(err, zk.ErrNoNode) {
		_, _, events, err = p.conn.ExistsW(p.path)
	}
	return events, err
}

// Close ends the session.
func (p *ZookeeperProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		p.conn.Close()
	}
	return nil
}

// zkLogger routes the client's chatter to slog at debug level.
type zkLogger struct{}

func (zkLogger) Printf(format string, args ...any) {
	slog.Debug(fmt.Sprintf(format, args...), "component", "zookeeper")
}

var _ Provider = (*ZookeeperProvider)(nil)
