// Copyright 2025 Poiesic Systems
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


package badger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/poiesic/chunkwise/core"
	"github.com/poiesic/chunkwise/storage"
)

// Store implements storage.RecordStore on BadgerDB. Keys are content
// addressed within a product version, so pipeline re-runs over identical
// input are idempotent writes.
type Store struct {
	backend *Backend
}

var _ storage.RecordStore = (*Store)(nil)

// NewStore creates a record store over an open backend.
func NewStore(backend *Backend) *Store {
	return &Store{backend: backend}
}

// Open opens a BadgerDB database at path and wraps it in a Store.
func Open(path string, inMemory bool) (*Store, error) {
	backend, err := OpenBackend(path, inMemory)
	if err != nil {
		return nil, err
	}
	return NewStore(backend), nil
}

// Close implements storage.RecordStore.
func (s *Store) Close() error {
	return s.backend.Close()
}

// ready rejects operations on a cancelled context or a closed backend.
func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.backend.IsClosed() {
		return storage.ErrClosed
	}
	return nil
}

// PutChunks implements storage.ChunkRepository.
func (s *Store) PutChunks(ctx context.Context, productID, version string, chunks ...*core.ChunkRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.backend.Update(func(tx *badger.Txn) error {
		for _, chunk := range chunks {
			if err := core.ValidateChunkRecord(chunk); err != nil {
				return err
			}
			key := makeChunkKey(productID, version, chunk.ChunkID)
			if err := tx.Set(key, storage.MarshalChunkRecord(chunk)); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetChunk implements storage.ChunkRepository.
func (s *Store) GetChunk(ctx context.Context, productID, version, chunkID string) (*core.ChunkRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	var record *core.ChunkRecord
	err := s.backend.View(func(tx *badger.Txn) error {
		item, err := tx.Get(makeChunkKey(productID, version, chunkID))
		if err != nil {
			return translateGetErr(err, chunkID)
		}
		return item.Value(func(val []byte) error {
			record, err = storage.UnmarshalChunkRecord(val)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// GetChunks implements storage.ChunkRepository.
func (s *Store) GetChunks(ctx context.Context, productID, version string) ([]*core.ChunkRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	var records []*core.ChunkRecord
	err := s.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeChunkScanKey(productID, version)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				record, err := storage.UnmarshalChunkRecord(val)
				if err != nil {
					return err
				}
				records = append(records, record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// PutScores implements storage.ScoreRepository.
func (s *Store) PutScores(ctx context.Context, productID, version string, scores ...*core.ChunkScore) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.backend.Update(func(tx *badger.Txn) error {
		for _, score := range scores {
			if err := core.ValidateChunkScore(score); err != nil {
				return err
			}
			key := makeScoreKey(productID, version, score.ChunkID)
			if err := tx.Set(key, storage.MarshalChunkScore(score)); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetScore implements storage.ScoreRepository.
func (s *Store) GetScore(ctx context.Context, productID, version, chunkID string) (*core.ChunkScore, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	var score *core.ChunkScore
	err := s.backend.View(func(tx *badger.Txn) error {
		item, err := tx.Get(makeScoreKey(productID, version, chunkID))
		if err != nil {
			return translateGetErr(err, chunkID)
		}
		return item.Value(func(val []byte) error {
			score, err = storage.UnmarshalChunkScore(val)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return score, nil
}

// GetScores implements storage.ScoreRepository.
func (s *Store) GetScores(ctx context.Context, productID, version string) ([]*core.ChunkScore, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	var scores []*core.ChunkScore
	err := s.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeScoreScanKey(productID, version)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				score, err := storage.UnmarshalChunkScore(val)
				if err != nil {
					return err
				}
				scores = append(scores, score)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return scores, nil
}

// PutArtifact implements storage.ArtifactRepository.
func (s *Store) PutArtifact(ctx context.Context, productID, version, name string, data []byte) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.backend.Update(func(tx *badger.Txn) error {
		return tx.Set(makeArtifactKey(productID, version, name), data)
	})
}

// GetArtifact implements storage.ArtifactRepository.
func (s *Store) GetArtifact(ctx context.Context, productID, version, name string) ([]byte, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	var data []byte
	err := s.backend.View(func(tx *badger.Txn) error {
		item, err := tx.Get(makeArtifactKey(productID, version, name))
		if err != nil {
			return translateGetErr(err, name)
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// ListArtifacts implements storage.ArtifactRepository.
func (s *Store) ListArtifacts(ctx context.Context, productID, version string) ([]string, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	prefix := makeArtifactScanKey(productID, version)
	var names []string
	err := s.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			key := string(iter.Item().Key())
			names = append(names, strings.TrimPrefix(key, string(prefix)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

func translateGetErr(err error, id string) error {
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	return err
}
