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

package rt

import "unsafe"

// Header is the in-memory representation of a sized slice: three 8-byte
// words {base, len, cap}. This layout is ABI; it is what compiled code
// stores, what crosses extern calls, and what the host-facing Slice type
// wraps.
type Header struct {
	Data unsafe.Pointer
	Len  int64
	Cap  int64
}

// Bytes views the slice as raw bytes given its element size.
func (h Header) Bytes(elemSize int) []byte {
	if h.Len == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(h.Data), int(h.Len)*elemSize)
}
