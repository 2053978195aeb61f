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

package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"buf.build/go/sarus/internal/lexer"
)

func kinds(t *testing.T, src string) []lexer.Kind {
	t.Helper()
	toks, err := lexer.New(src).All()
	require.NoError(t, err)
	out := make([]lexer.Kind, len(toks))
	for i, tok := range toks {
		out[i] = tok.Kind
	}
	return out
}

func TestBasicTokens(t *testing.T) {
	t.Parallel()
	require.Equal(t,
		[]lexer.Kind{
			lexer.KwFn, lexer.Ident, lexer.LParen, lexer.Ident, lexer.Comma,
			lexer.Ident, lexer.RParen, lexer.Arrow, lexer.LParen, lexer.Ident,
			lexer.RParen, lexer.LBrace, lexer.Ident, lexer.Assign, lexer.Ident,
			lexer.Star, lexer.Ident, lexer.RBrace, lexer.EOF,
		},
		kinds(t, `fn main(a, b) -> (c) { c = a * b }`))
}

func TestNumbers(t *testing.T) {
	t.Parallel()
	toks, err := lexer.New(`1 1.5 0.00001 255u8 0..3 1.5.floor`).All()
	require.NoError(t, err)

	require.Equal(t, lexer.Int, toks[0].Kind)
	require.Equal(t, "1", toks[0].Text)

	require.Equal(t, lexer.Float, toks[1].Kind)
	require.Equal(t, "1.5", toks[1].Text)

	require.Equal(t, lexer.Float, toks[2].Kind)
	require.Equal(t, "0.00001", toks[2].Text)

	require.Equal(t, lexer.Int, toks[3].Kind)
	require.True(t, toks[3].U8)

	// 0..3 is Int DotDot Int, not a malformed float.
	require.Equal(t, lexer.Int, toks[4].Kind)
	require.Equal(t, lexer.DotDot, toks[5].Kind)
	require.Equal(t, lexer.Int, toks[6].Kind)

	// 1.5.floor is Float Dot Ident.
	require.Equal(t, lexer.Float, toks[7].Kind)
	require.Equal(t, lexer.Dot, toks[8].Kind)
	require.Equal(t, lexer.Ident, toks[9].Kind)
}

func TestStringEscapes(t *testing.T) {
	t.Parallel()
	toks, err := lexer.New(`"a\n\t\"\\\0b"`).All()
	require.NoError(t, err)
	require.Equal(t, lexer.String, toks[0].Kind)
	require.Equal(t, "a\n\t\"\\\x00b", toks[0].Text)

	_, err = lexer.New(`"unterminated`).All()
	require.Error(t, err)
}

func TestLineNumbersAndComments(t *testing.T) {
	t.Parallel()
	toks, err := lexer.New("a\n// comment line\nb c\n\nd").All()
	require.NoError(t, err)
	require.Equal(t, 1, toks[0].Line)
	require.Equal(t, 3, toks[1].Line) // comment lines still count
	require.Equal(t, 3, toks[2].Line)
	require.Equal(t, 5, toks[3].Line)

	require.False(t, toks[2].NewlineBefore) // b c on one line
	require.True(t, toks[3].NewlineBefore)
}

func TestMetadataBlock(t *testing.T) {
	t.Parallel()
	l := lexer.New("@ add_node node\nkey = 1\nmore\n@\nfn")
	tok, err := l.Next()
	require.NoError(t, err)
	require.Equal(t, lexer.At, tok.Kind)

	head, body, err := l.Metadata()
	require.NoError(t, err)
	require.Equal(t, []string{"add_node", "node"}, head)
	require.Equal(t, "key = 1\nmore\n", body)

	tok, err = l.Next()
	require.NoError(t, err)
	require.Equal(t, lexer.KwFn, tok.Kind)
	require.Equal(t, 5, tok.Line)
}

func TestOperators(t *testing.T) {
	t.Parallel()
	require.Equal(t,
		[]lexer.Kind{
			lexer.PlusAssign, lexer.MinusAssign, lexer.StarAssign,
			lexer.SlashAssign, lexer.Eq, lexer.Ne, lexer.Le, lexer.Ge,
			lexer.AndAnd, lexer.OrOr, lexer.ColonColon, lexer.Arrow,
			lexer.DotDot, lexer.Pipe, lexer.Amp, lexer.Not, lexer.Percent,
			lexer.Semi, lexer.EOF,
		},
		kinds(t, `+= -= *= /= == != <= >= && || :: -> .. | & ! % ;`))
}
