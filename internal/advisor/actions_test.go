// internal/advisor/actions_test.go
package advisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseActionFromTo(t *testing.T) {
	text := "Looking at your portfolio, I'd increase DeFi from 15% to 25% and decrease meme from 10% to 5%."

	action := ParseAction(text)
	require.NotNil(t, action)
	assert.Equal(t, "rebalance", action.Type)
	require.Len(t, action.Changes, 2)

	assert.Equal(t, Change{Category: "defi", Name: "DeFi", From: 15, To: 25}, action.Changes[0])
	assert.Equal(t, Change{Category: "meme", Name: "Meme & NFT", From: 10, To: 5}, action.Changes[1])
}

func TestParseActionMultiWordCategory(t *testing.T) {
	action := ParseAction("For a safer allocation, increase big cap from 25% to 35%.")
	require.NotNil(t, action)
	require.Len(t, action.Changes, 1)
	assert.Equal(t, "bigcap", action.Changes[0].Category)
	assert.Equal(t, 25, action.Changes[0].From)
	assert.Equal(t, 35, action.Changes[0].To)
}

func TestParseActionDeltaPlaceholders(t *testing.T) {
	action := ParseAction("I'd rebalance: increase stablecoins by 10% to reduce risk.")
	require.NotNil(t, action)
	require.Len(t, action.Changes, 1)

	// Delta phrasing carries a placeholder baseline that callers replace with
	// the live allocation.
	assert.Equal(t, "stablecoin", action.Changes[0].Category)
	assert.Equal(t, placeholderPct, action.Changes[0].From)
	assert.Equal(t, placeholderPct+10, action.Changes[0].To)
}

func TestParseActionDecreaseByClampsAtZero(t *testing.T) {
	action := ParseAction("Your portfolio is too risky, decrease meme by 40%.")
	require.NotNil(t, action)
	require.Len(t, action.Changes, 1)
	assert.Equal(t, 0, action.Changes[0].To)
}

func TestParseActionAllocate(t *testing.T) {
	action := ParseAction("A balanced allocation would allocate 30% to defi.")
	require.NotNil(t, action)
	require.Len(t, action.Changes, 1)
	assert.Equal(t, "defi", action.Changes[0].Category)
	assert.Equal(t, 30, action.Changes[0].To)
}

func TestParseActionExplicitBeatsDelta(t *testing.T) {
	action := ParseAction("Rebalance: increase defi from 15% to 20%, or increase meme by 5%.")
	require.NotNil(t, action)
	// Delta patterns are only consulted when no explicit from/to matched.
	require.Len(t, action.Changes, 1)
	assert.Equal(t, "defi", action.Changes[0].Category)
}

func TestParseActionNil(t *testing.T) {
	cases := map[string]string{
		"no portfolio keywords": "MON is trading at $3.29, up 4% in 24h.",
		"keywords but no changes": "Your portfolio looks well balanced overall, " +
			"no allocation changes needed.",
		"unknown category": "I'd increase gaming from 5% to 10% in your portfolio.",
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Nil(t, ParseAction(text))
		})
	}
}
