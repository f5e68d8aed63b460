// Package deployments reads contract addresses from deployment artifacts laid out
// as <dir>/<network>/<Name>.json, each holding at least an "address" field.
package deployments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
)

var ErrNoAddress = errors.New("deployment has no address")

// Artifact is the part of a deployment file the runner reads.
type Artifact struct {
	Address         common.Address  `json:"address"`
	TransactionHash common.Hash     `json:"transactionHash"`
	ABI             json.RawMessage `json:"abi,omitempty"`
}

// Store resolves deployments of one network.
type Store struct {
	dir     string
	network string
}

func NewStore(dir, network string) *Store {
	return &Store{dir: dir, network: network}
}

// Get reads a single named deployment.
func (s *Store) Get(ctx context.Context, name string) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(s.dir, s.network, name+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("deployment %s on %s: %w", name, s.network, err)
	}
	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("deployment %s on %s: %w", name, s.network, err)
	}
	if artifact.Address == (common.Address{}) {
		return nil, fmt.Errorf("deployment %s on %s: %w", name, s.network, ErrNoAddress)
	}
	return &artifact, nil
}

// Addresses looks up every name concurrently. The lookups are independent
// reads, so the first failure cancels the rest.
func (s *Store) Addresses(ctx context.Context, names ...string) (map[string]common.Address, error) {
	var (
		mu  sync.Mutex
		out = make(map[string]common.Address, len(names))
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		name := name
		g.Go(func() error {
			artifact, err := s.Get(gctx, name)
			if err != nil {
				return err
			}
			mu.Lock()
			out[name] = artifact.Address
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
