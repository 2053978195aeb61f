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

package sarus_test

import "testing"

func TestLoopLifetime(t *testing.T) {
	t.Parallel()
	runMain(t, `
fn main() -> () {
    a = [0;10000][..]
    i = 0 while i < 5 {i+=1} : {
        c = [1.0;10000]
        if i == 0 {
            b = [2;10000]
            a = b[..]
        }
        d = [1.0;10000]
    }
    e = [1.0;10000]
    a[5].assert_eq(2)
}
`)
}

func TestDeepStackWhileLoop(t *testing.T) {
	t.Parallel()
	runMain(t, `
fn blank() -> () {
}

fn other() -> () {
    a = [1234; 10000]
    a[9999].assert_eq(1234)
}

fn first() -> () {
    blank()
    blank()
    other()
    a = [1234; 10000]
    other()
    a[0].assert_eq(1234)
}

fn main() -> () {
    i = 0 while i <= 10 {
        if i == 0 {
        }
        a = [1234; 10000]
        b = [1234; 10000]
        a[9999].assert_eq(1234)
        b[9999].assert_eq(1234)
        i += 1
    }
    if true {

    }
    first()
}
`)
}

func TestDeepStackNestedCalls(t *testing.T) {
	t.Parallel()
	runMain(t, `
fn blank() -> () {
}

fn other() -> () {
    a = [1234; 10000]
    a[0].assert_eq(1234)
}

fn first() -> () {
    blank()
    blank()
    other()
    a = [1234; 10000]
    other()
}

fn main() -> () {
    i = 0 while i <= 10 {
        first()
        i += 1
    }
}
`)
}

func TestDeepStackEarlyReturn(t *testing.T) {
	t.Parallel()
	runMain(t, `
fn other(return_early: bool) -> () {
    a = [1234; 10000]
    i = 0 while i <= 5 {i+=1}:{
        b = [1234; 10000]
        if return_early {
            return
        }
    }
    a[9999].assert_eq(1234)
}

fn main() -> () {
    other(true)
    other(false)
}
`)
}
