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

package blob

import (
	"io"

	"github.com/juju/errors"

	"github.com/saffron-io/saffron/config"
)

// Store reads and writes model snapshots by name.
type Store interface {
	// Open a blob for reading.
	Open(name string) (io.ReadCloser, error)
	// Create a blob for writing. The done channel is closed when the write
	// has been flushed to the backend.
	Create(name string) (io.WriteCloser, chan struct{}, error)
}

// NewStore creates a snapshot store from the storage configuration.
func NewStore(cfg config.StorageConfig) (Store, error) {
	switch cfg.Type {
	case "posix":
		return NewPOSIX(cfg.Path), nil
	case "s3":
		return NewS3(cfg.S3)
	default:
		return nil, errors.NotSupportedf("storage type %q", cfg.Type)
	}
}
