package book_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/herohde/gauntlet/pkg/book"
	"github.com/herohde/gauntlet/pkg/rules"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		line string
		want book.LineKind
	}{
		{"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1", book.PlainFEN},
		{"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq -; bm e4;", book.EPDWithOps},
		{"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq -", book.EPDWithOps},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, book.Classify(tt.line), tt.line)
	}
}

func buildEPD(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteString("rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1\n")
	}
	return b.String()
}

// Scenario 2 from spec.md §8: seed=123456789, start=3256, sequential
// consumption over >= 10 entries. The entries are identical, so this checks
// that NextID hands out 0..9 in order and that Fetch accepts each id; the
// resulting (3256+id) mod len indices are not observed.
func TestSequentialBookIndices(t *testing.T) {
	const n = 5000
	b, err := book.Load(strings.NewReader(buildEPD(n)), book.EPD, book.Sequential, 123456789, 3256, 0, rules.Notnil{})
	require.NoError(t, err)
	require.Equal(t, n, b.Len())

	for i := 0; i < 10; i++ {
		id := b.NextID()
		assert.Equal(t, uint64(i), id)
		_ = b.Fetch(id) // indices are (3256+id) mod len internally; just exercise no panic
	}
}

func TestRandomShuffleDeterministic(t *testing.T) {
	data := buildEPD(50)

	b1, err := book.Load(strings.NewReader(data), book.EPD, book.Random, 42, 0, 0, rules.Notnil{})
	require.NoError(t, err)
	b2, err := book.Load(strings.NewReader(data), book.EPD, book.Random, 42, 0, 0, rules.Notnil{})
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		assert.Equal(t, b1.Fetch(uint64(i)), b2.Fetch(uint64(i)))
	}
}

func TestLoadEPDEmptyIsError(t *testing.T) {
	_, err := book.Load(strings.NewReader(""), book.EPD, book.Sequential, 1, 0, 0, rules.Notnil{})
	assert.Error(t, err)
}

const twoGamePGN = `[Event "?"]
[Result "*"]

1. e4 e5 2. Nf3 Nc6 *

[Event "?"]
[Result "*"]

1. d4 d5 *
`

func TestLoadPGNMultiGameSplitsOnSingleBlankLine(t *testing.T) {
	b, err := book.Load(strings.NewReader(twoGamePGN), book.PGN, book.Sequential, 1, 0, 0, rules.Notnil{})
	require.NoError(t, err)
	require.Equal(t, 2, b.Len())

	assert.Equal(t, []string{"e2e4", "e7e5", "g1f3", "b8c6"}, b.Fetch(0).Moves)
	assert.Equal(t, []string{"d2d4", "d7d5"}, b.Fetch(1).Moves)
}

func TestFetchCyclesModLen(t *testing.T) {
	b, err := book.Load(strings.NewReader(buildEPD(3)), book.EPD, book.Sequential, 1, 0, 0, rules.Notnil{})
	require.NoError(t, err)

	first := b.Fetch(0)
	wrapped := b.Fetch(3)
	assert.Equal(t, first, wrapped)
}
