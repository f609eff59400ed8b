package samples

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/OpenTraceLab/OpenTraceBits/pkg/bitcoord"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/diff"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/tiledb"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/violation"
)

type fu = bitcoord.FuseBit

func one(c fu) diff.Diff[fu] { return diff.Of(map[fu]bool{c: true}) }

func TestClaimDiscipline(t *testing.T) {
	s := NewStore[fu]()
	k := Key{"FB", "MC0", "INV", "1"}
	require.NoError(t, s.Insert(k, one(fu{Row: 1})))

	peek, err := s.PeekDiff(k)
	require.NoError(t, err)
	assert.Equal(t, 1, peek.Len())
	peek.DiscardBits(fu{Row: 1})

	again, err := s.PeekDiff(k)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Len(), "peek returns an independent copy")

	got, err := s.GetDiff(k)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())

	_, err = s.GetDiff(k)
	require.Error(t, err)
	assert.True(t, errors.Is(err, violation.ErrExhausted))
	assert.Contains(t, err.Error(), "already consumed")

	_, err = s.PeekDiff(k)
	assert.True(t, errors.Is(err, violation.ErrExhausted))

	_, err = s.GetDiff(Key{"FB", "MC0", "INV", "0"})
	assert.Contains(t, err.Error(), "never recorded")

	assert.Equal(t, 1, s.Consumed())
	assert.Empty(t, s.Remaining())
}

func TestInsertTwice(t *testing.T) {
	s := NewStore[fu]()
	k := Key{"T", "B", "A", "V"}
	require.NoError(t, s.Insert(k, one(fu{Bit: 1})))
	require.NoError(t, s.Insert(k, one(fu{Bit: 1})))
	err := s.Insert(k, one(fu{Bit: 2}))
	assert.True(t, errors.Is(err, violation.ErrConsistency))
	assert.Equal(t, 1, s.Len())
}

func TestConcurrentInsert(t *testing.T) {
	s := NewStore[fu]()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			k := Key{"T", "B", "A", string(rune('a' + i))}
			assert.NoError(t, s.Insert(k, one(fu{Bit: uint32(i)})))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 16, s.Len())
}

func TestValuesAndRemaining(t *testing.T) {
	s := NewStore[fu]()
	require.NoError(t, s.Insert(Key{"IOB", "IOB0", "PULL", "UP"}, one(fu{Bit: 1})))
	require.NoError(t, s.Insert(Key{"IOB", "IOB0", "PULL", "DOWN"}, one(fu{Bit: 2})))
	require.NoError(t, s.Insert(Key{"IOB", "IOB0", "SLEW", "FAST"}, one(fu{Bit: 3})))

	assert.Equal(t, []string{"DOWN", "UP"}, s.Values(tiledb.Key{Tile: "IOB", Bel: "IOB0", Attr: "PULL"}))

	_, err := s.GetDiff(Key{"IOB", "IOB0", "PULL", "UP"})
	require.NoError(t, err)
	assert.Equal(t, []string{"DOWN"}, s.Values(tiledb.Key{Tile: "IOB", Bel: "IOB0", Attr: "PULL"}))
	assert.Equal(t, []Key{
		{"IOB", "IOB0", "PULL", "DOWN"},
		{"IOB", "IOB0", "SLEW", "FAST"},
	}, s.Remaining())
	assert.Len(t, s.Keys(), 3)
	assert.True(t, s.Has(Key{"IOB", "IOB0", "SLEW", "FAST"}))
	assert.False(t, s.Has(Key{"IOB", "IOB0", "PULL", "UP"}))
}

func TestFinishWarns(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	s := NewStore[fu]()
	require.NoError(t, s.Insert(Key{"T", "B", "A", "1"}, one(fu{Bit: 4})))
	require.NoError(t, s.Insert(Key{"T", "B", "A", "2"}, one(fu{Bit: 5})))
	_, err := s.GetDiff(Key{"T", "B", "A", "1"})
	require.NoError(t, err)

	left := s.Finish(zap.New(core))
	assert.Equal(t, []Key{{"T", "B", "A", "2"}}, left)
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "unconsumed sample", entry.Message)
	assert.Equal(t, "T:B:A:2", entry.ContextMap()["key"])
}

func TestParseKey(t *testing.T) {
	k, err := ParseKey("CLB:SLICE0:LUT:0:1")
	require.NoError(t, err)
	assert.Equal(t, Key{"CLB", "SLICE0", "LUT", "0:1"}, k)
	assert.Equal(t, "CLB:SLICE0:LUT:0:1", k.String())

	_, err = ParseKey("CLB::LUT:1")
	assert.Error(t, err)
	_, err = ParseKey("CLB:SLICE0")
	assert.Error(t, err)
}
