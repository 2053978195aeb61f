// Copyright 2020-2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sync2_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"buf.build/go/sarus/internal/sync2"
)

func TestFramePoolZeroesOnReuse(t *testing.T) {
	t.Parallel()
	pool := &sync2.FramePool{Size: 64}

	frame, drop := pool.Get()
	require.Len(t, frame, 64)
	for i := range frame {
		frame[i] = 0xFF
	}
	drop()

	frame, drop = pool.Get()
	defer drop()
	for _, b := range frame {
		require.Zero(t, b)
	}
}

func TestFramePoolConcurrent(t *testing.T) {
	t.Parallel()
	pool := &sync2.FramePool{Size: 4 << 10}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 200 {
				frame, drop := pool.Get()
				for _, b := range frame {
					if b != 0 {
						t.Error("dirty frame")
						break
					}
				}
				frame[0] = 1
				drop()
			}
		}()
	}
	wg.Wait()
}
