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

import "fmt"

// TrapCode identifies why compiled code trapped.
type TrapCode int

const (
	TrapUnreachable TrapCode = iota
	TrapSliceOverflow
	TrapSliceUnderflow
	TrapDivByZero
	TrapAssert
)

var trapNames = [...]string{
	TrapUnreachable:    "unreachable executed",
	TrapSliceOverflow:  "slice length would exceed capacity",
	TrapSliceUnderflow: "pop from empty slice",
	TrapDivByZero:      "integer division by zero",
	TrapAssert:         "assertion failed",
}

// Trap is the panic value raised when emitted code traps. It deliberately
// does not implement error: a trap aborts the call, it is not a value the
// user code can observe.
type Trap struct {
	Code TrapCode
	Msg  string
}

func (t Trap) String() string {
	s := "sarus: trap: " + trapNames[t.Code]
	if t.Msg != "" {
		s += ": " + t.Msg
	}
	return s
}

// Raise panics with a Trap.
func Raise(code TrapCode, format string, args ...any) {
	panic(Trap{Code: code, Msg: fmt.Sprintf(format, args...)})
}
