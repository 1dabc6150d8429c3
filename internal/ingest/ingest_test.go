package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ordersim/internal/domain"
)

func TestLoadParsesAddExecuteAndReplaceRows(t *testing.T) {
	csv := "AddBid,1,10,100,10,\n" +
		"AddAsk,2,20,101,5,\n" +
		"ExecuteBid,1,30,,4,\n" +
		"ReplaceAsk,2,40,,,9\n"
	msgs, err := Load(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, msgs, 4)

	assert.Equal(t, domain.Message{Kind: domain.AddBid, Ref: 1, Timestamp: 10, Price: 100, Shares: 10}, msgs[0])
	assert.Equal(t, domain.ExecuteBid, msgs[2].Kind)
	assert.EqualValues(t, 4, msgs[2].Shares)
	assert.EqualValues(t, 9, msgs[3].NewRef)
}

func TestLoadRejectsUnknownKind(t *testing.T) {
	_, err := Load(strings.NewReader("Bogus,1,10,,,\n"))
	assert.ErrorIs(t, err, domain.ErrInvalidMessageTag)
}
