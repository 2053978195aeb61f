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

func TestEnumsNum(t *testing.T) {
	t.Parallel()
	runMain(t, `
enum Num {
    int: i64,
    float: f32,
    byte: u8,
}

fn f32(self: Num) -> (n: f32) {
    n = 0.0
    if self.type == Num::int {
        n = self.int.f32()
    } else if self.type == Num::float {
        n = self.float
    } else {
        n = self.byte.f32()
    }
}

fn assert_eq(self: Num, other: Num) -> () {
    self.unify(other)
    if self.type == Num::int {
        self.int.assert_eq(other.int)
    } else if self.type == Num::float {
        self.float.assert_eq(other.float)
    } else {
        self.byte.assert_eq(other.byte)
    }
}

fn unify(self: Num, other: Num) -> () {
    if self.type == other.type {
        return
    } else {
        self = Num::float(self.f32())
        other = Num::float(other.f32())
    }
}

fn add(self: Num, other: Num) -> (z: Num) {
    self.unify(other)
    z = Num::int(100)
    if self.type == Num::int {
        z = Num::int(self.int + other.int)
    } else if self.type == Num::float {
        z = Num::float(self.float + other.float)
    } else {
        z = Num::byte(self.byte + other.byte)
    }
}

fn main() -> () {
    Num::int(5).add(Num::int(5)).assert_eq(Num::int(10))
    Num::float(5.0).add(Num::float(5.0)).assert_eq(Num::float(10.0))
    Num::int(5).add(Num::float(5.0)).assert_eq(Num::float(10.0))
    Num::byte(5u8).add(Num::byte(5u8)).assert_eq(Num::byte(10u8))
    Num::byte(5u8).add(Num::float(5.0)).assert_eq(Num::float(10.0))
}
`)
}

func TestEnumsTraditional(t *testing.T) {
	t.Parallel()
	runMain(t, `
enum Num {
    int,
    float,
    byte,
}

fn main() -> () {
    Num::int().type.assert_eq(Num::int)
    Num::float().type.assert_eq(Num::float)
    Num::byte().type.assert_eq(Num::byte)
    a = Num::int()
    b = Num::float()
    c = Num::byte()
    a.type.assert_eq(0)
    b.type.assert_eq(1)
    c.type.assert_eq(2)
}
`)
}

func TestEnumsMixed(t *testing.T) {
	t.Parallel()
	runMain(t, `
enum Num {
    int,
    float,
    something: f32,
    byte,
    something_else: i64,
}

fn main() -> () {
    Num::int().type.assert_eq(Num::int)
    Num::float().type.assert_eq(Num::float)
    Num::something(100.0).type.assert_eq(Num::something)
    Num::byte().type.assert_eq(Num::byte)
    Num::something_else(200).type.assert_eq(Num::something_else)
    a = Num::int()
    b = Num::float()
    c = Num::something(100.0)
    d = Num::byte()
    e = Num::something_else(200)

    a.type.assert_eq(0)
    b.type.assert_eq(1)

    c.type.assert_eq(2)
    c.something.assert_eq(100.0)

    d.type.assert_eq(3)

    e.type.assert_eq(4)
    e.something_else.assert_eq(200)
}
`)
}

func TestEnumWebEvent(t *testing.T) {
	t.Parallel()
	runMain(t, `
struct Click {
    x: i64,
    y: i64,
}

enum WebEvent {
    page_load,
    page_unload,
    key_press: [u8],
    paste: [u8],
    click: Click,
}

fn check(event: WebEvent, expected: i64) -> () {
    event.type.assert_eq(expected)
    if event.type == WebEvent::key_press {
        event.key_press.assert_eq("x")
    } else if event.type == WebEvent::paste {
        event.paste.assert_eq("my text")
    } else if event.type == WebEvent::click {
        event.click.x.assert_eq(20)
        event.click.y.assert_eq(80)
    }
}

fn main() -> () {
    pressed = WebEvent::key_press("x"[..])
    pasted = WebEvent::paste("my text"[..])
    click = WebEvent::click(Click{ x: 20, y: 80, })
    load = WebEvent::page_load()
    unload = WebEvent::page_unload()

    check(pressed, WebEvent::key_press)
    check(pasted, WebEvent::paste)
    check(click, WebEvent::click)
    check(load, WebEvent::page_load)
    check(unload, WebEvent::page_unload)

    pressed.type.assert_eq(WebEvent::key_press)
    pasted.type.assert_eq(WebEvent::paste)
    click.type.assert_eq(WebEvent::click)
    load.type.assert_eq(WebEvent::page_load)
    unload.type.assert_eq(WebEvent::page_unload)
}
`)
}

func TestEnumSize(t *testing.T) {
	t.Parallel()
	runMain(t, `
enum Small {
    a,
    b,
}
enum WithPayload {
    none,
    byte: u8,
    number: f64,
}

fn main() -> () {
    Small::size.assert_eq(8)
    WithPayload::size.assert_eq(16)
}
`)
}
