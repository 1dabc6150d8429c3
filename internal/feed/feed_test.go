package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ordersim/internal/domain"
)

func testConfig() domain.Config {
	cfg := domain.DefaultConfig()
	cfg.DelayLB, cfg.DelayUB = 100, 200
	return cfg
}

func TestNextMergesHistoricalAndPendingByTimestamp(t *testing.T) {
	hist := []domain.Message{
		{Kind: domain.AddBid, Ref: 1, Timestamp: 10},
		{Kind: domain.AddAsk, Ref: 2, Timestamp: 20},
	}
	f := New(hist, testConfig())
	f.pending = append(f.pending, domain.Message{Kind: domain.AddBidAgent, Ref: -1, Timestamp: 15})

	m1, ok := f.Next()
	require.True(t, ok)
	assert.EqualValues(t, 1, m1.Ref) // historical at t=10 precedes pending at t=15

	m2, ok := f.Next()
	require.True(t, ok)
	assert.EqualValues(t, -1, m2.Ref) // pending at t=15 precedes historical at t=20

	m3, ok := f.Next()
	require.True(t, ok)
	assert.EqualValues(t, 2, m3.Ref)

	_, ok = f.Next()
	assert.False(t, ok)
}

func TestNextTiesFavorPending(t *testing.T) {
	hist := []domain.Message{{Kind: domain.AddAsk, Ref: 2, Timestamp: 20}}
	f := New(hist, testConfig())
	f.pending = append(f.pending, domain.Message{Kind: domain.AddBidAgent, Ref: -1, Timestamp: 20})

	m, ok := f.Next()
	require.True(t, ok)
	assert.EqualValues(t, -1, m.Ref)
}

func TestAgentRefsDecreaseMonotonically(t *testing.T) {
	f := New(nil, testConfig())
	r1 := f.AddLimit(100, 10, domain.Bid)
	r2 := f.AddLimit(101, 5, domain.Ask)
	r3 := f.AddMarket(3, domain.Bid)
	assert.EqualValues(t, -1, r1)
	assert.EqualValues(t, -2, r2)
	assert.EqualValues(t, -3, r3)
}

func TestDelayedTimestampsStrictlyIncreaseWithinATick(t *testing.T) {
	hist := []domain.Message{{Kind: domain.AddAsk, Ref: 1, Timestamp: 1000}}
	f := New(hist, testConfig())
	_, _ = f.Next() // advances wall time to 1000

	r1 := f.AddLimit(100, 1, domain.Bid)
	r2 := f.AddLimit(100, 1, domain.Bid)
	_ = r1
	_ = r2
	require.Len(t, f.pending, 2)
	assert.Less(t, f.pending[0].Timestamp, f.pending[1].Timestamp)
}

func TestAddMarketSideSelectsKind(t *testing.T) {
	f := New(nil, testConfig())
	f.AddMarket(10, domain.Ask)
	f.AddMarket(10, domain.Bid)
	require.Len(t, f.pending, 2)
	assert.Equal(t, domain.MarketBuy, f.pending[0].Kind)
	assert.Equal(t, domain.MarketSell, f.pending[1].Kind)
}

func TestHasNextReflectsBothStreams(t *testing.T) {
	f := New(nil, testConfig())
	assert.False(t, f.HasNext())
	f.Delete(1, domain.Ask)
	assert.True(t, f.HasNext())
}
