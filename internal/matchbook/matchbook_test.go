package matchbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ordersim/internal/domain"
)

func process(t *testing.T, ob *OrderBook, msg domain.Message) (domain.Tag, []domain.Fill) {
	t.Helper()
	tag, fills, err := ob.Process(msg)
	require.NoError(t, err)
	return tag, fills
}

func TestEmptyBookAddAndSelfMatch(t *testing.T) {
	ob := New()
	process(t, ob, domain.Message{Kind: domain.AddBid, Ref: 1, Price: 100, Shares: 10})
	assert.EqualValues(t, 100, ob.Bids.Best())
	assert.EqualValues(t, 10, ob.BidQuoteVolume())

	tag, fills := process(t, ob, domain.Message{Kind: domain.AddAsk, Ref: 2, Price: 100, Shares: 4})
	assert.Equal(t, domain.TagNone, tag) // both orders here are real; no agent fill
	assert.Empty(t, fills)

	price, live := ob.Bids.PriceOf(1)
	assert.True(t, live)
	assert.EqualValues(t, 100, price)
	assert.EqualValues(t, 6, ob.BidQuoteVolume())
}

func TestPriceTimePriority(t *testing.T) {
	ob := New()
	process(t, ob, domain.Message{Kind: domain.AddBid, Ref: 1, Price: 100, Shares: 5})
	process(t, ob, domain.Message{Kind: domain.AddBid, Ref: 2, Price: 100, Shares: 7})
	process(t, ob, domain.Message{Kind: domain.ExecuteBid, Ref: 1, Shares: 5})

	assert.False(t, ob.Bids.Contains(1))
	assert.EqualValues(t, 7, ob.BidQuoteVolume())
}

func TestShadowConsumptionReportsAgentFill(t *testing.T) {
	ob := New()
	process(t, ob, domain.Message{Kind: domain.AddBid, Ref: 1, Price: 100, Shares: 10})
	process(t, ob, domain.Message{Kind: domain.AddBidAgent, Ref: -1, Price: 101, Shares: 3})

	tag, fills := process(t, ob, domain.Message{Kind: domain.ExecuteBid, Ref: 1, Shares: 4})
	assert.Equal(t, domain.TagBuy, tag)
	require.Len(t, fills, 1)
	assert.Equal(t, domain.Fill{Ref: -1, Price: 101, Shares: 3}, fills[0])

	assert.EqualValues(t, 6, ob.Bids.QuoteVolume())
}

func TestLiquidationFillsRoute(t *testing.T) {
	ob := New()
	process(t, ob, domain.Message{Kind: domain.AddAsk, Ref: 1, Price: 200, Shares: 100})
	tag, fills := process(t, ob, domain.Message{Kind: domain.MarketBuy, Ref: -5, Shares: 60})
	assert.Equal(t, domain.TagBuy, tag) // the agent's market buy: the agent bought
	require.Len(t, fills, 1)
	assert.EqualValues(t, 60, fills[0].Shares)
}

func TestCrossingAddIsExecutedAsMarketOrder(t *testing.T) {
	ob := New()
	process(t, ob, domain.Message{Kind: domain.AddBidAgent, Ref: -1, Price: 100, Shares: 10})
	tag, fills := process(t, ob, domain.Message{Kind: domain.AddAsk, Ref: 2, Price: 99, Shares: 4})
	assert.Equal(t, domain.TagBuy, tag)
	require.Len(t, fills, 1)
	assert.Equal(t, int64(-1), fills[0].Ref)
}

func TestInvalidMessageTagIsFatal(t *testing.T) {
	ob := New()
	_, _, err := ob.Process(domain.Message{Kind: domain.Kind(255)})
	assert.ErrorIs(t, err, domain.ErrInvalidMessageTag)
}

func TestAssertInvariants(t *testing.T) {
	ob := New()
	process(t, ob, domain.Message{Kind: domain.AddBid, Ref: 1, Price: 99, Shares: 10})
	process(t, ob, domain.Message{Kind: domain.AddAsk, Ref: 2, Price: 101, Shares: 10})
	assert.NoError(t, ob.AssertInvariants())
}
