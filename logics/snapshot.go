// Copyright 2025 saffron Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logics

import (
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/saffron-io/saffron/base/encoding"
	"github.com/saffron-io/saffron/base/log"
	"github.com/saffron-io/saffron/storage/blob"
)

// SnapshotName is the blob name the live snapshot is stored under.
const SnapshotName = "snapshot.bin"

// Snapshot is an immutable serving bundle: the hybrid recommender plus the
// popularity leaderboard, stamped with an identity and creation time.
// Serving swaps whole snapshots and never mutates one in place.
type Snapshot struct {
	Id          uuid.UUID
	CreatedAt   time.Time
	Recommender *Recommender
	Popular     *NonPersonalized
}

func NewSnapshot(recommender *Recommender, popular *NonPersonalized) *Snapshot {
	return &Snapshot{
		Id:          uuid.New(),
		CreatedAt:   time.Now().UTC(),
		Recommender: recommender,
		Popular:     popular,
	}
}

func (s *Snapshot) Marshal(w io.Writer) error {
	if err := encoding.WriteString(w, s.Id.String()); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteGob(w, s.CreatedAt); err != nil {
		return errors.Trace(err)
	}
	if err := s.Recommender.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(s.Popular.Marshal(w))
}

func (s *Snapshot) Unmarshal(r io.Reader) error {
	id, err := encoding.ReadString(r)
	if err != nil {
		return errors.Trace(err)
	}
	s.Id, err = uuid.Parse(id)
	if err != nil {
		return errors.Trace(err)
	}
	if err = encoding.ReadGob(r, &s.CreatedAt); err != nil {
		return errors.Trace(err)
	}
	s.Recommender = &Recommender{}
	if err = s.Recommender.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	s.Popular = &NonPersonalized{}
	return errors.Trace(s.Popular.Unmarshal(r))
}

// Save writes the snapshot to the blob store and waits for the write to be
// flushed.
func (s *Snapshot) Save(store blob.Store) error {
	w, done, err := store.Create(SnapshotName)
	if err != nil {
		return errors.Trace(err)
	}
	if err = s.Marshal(w); err != nil {
		_ = w.Close()
		return errors.Trace(err)
	}
	if err = w.Close(); err != nil {
		return errors.Trace(err)
	}
	<-done
	log.Logger().Info("saved snapshot",
		zap.String("id", s.Id.String()),
		zap.Time("created_at", s.CreatedAt))
	return nil
}

// LoadSnapshot reads a snapshot back from the blob store.
func LoadSnapshot(store blob.Store) (*Snapshot, error) {
	r, err := store.Open(SnapshotName)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer func() {
		_ = r.Close()
	}()
	snapshot := &Snapshot{}
	if err = snapshot.Unmarshal(r); err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Info("loaded snapshot",
		zap.String("id", snapshot.Id.String()),
		zap.Time("created_at", snapshot.CreatedAt))
	return snapshot, nil
}
