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

package log

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
)

func TestSetLogger(t *testing.T) {
	temp, err := os.MkdirTemp("", "saffron_log")
	assert.NoError(t, err)
	defer func() {
		_ = os.RemoveAll(temp)
	}()
	logPath := filepath.Join(temp, "saffron.log")
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(flagSet)
	assert.NoError(t, flagSet.Set("log-path", logPath))
	SetLogger(flagSet, false)
	Logger().Info("hello saffron")
	assert.NoError(t, Logger().Sync())
	stat, err := os.Stat(logPath)
	assert.NoError(t, err)
	assert.Greater(t, stat.Size(), int64(0))
}

func TestSetDevelopmentLogger(t *testing.T) {
	SetDevelopmentLogger()
	assert.NotNil(t, Logger())
	SetProductionLogger()
	assert.NotNil(t, Logger())
}
