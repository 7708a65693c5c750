package intel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-mev-engine/internal/domain"
)

func TestStaticLookupCopiesEntries(t *testing.T) {
	src := map[string]*domain.ProducerIntel{
		"key-a": {Pubkey: "key-a", MevRate: 0.4},
	}
	l := NewStaticLookup(src)

	// Mutating the source after construction must not leak through.
	src["key-a"].MevRate = 0.99

	got, ok := l.Get("key-a")
	require.True(t, ok)
	assert.Equal(t, 0.4, got.MevRate)
	assert.Equal(t, 1, l.Len())
}

func TestStaticLookupMiss(t *testing.T) {
	l := NewStaticLookup(nil)

	got, ok := l.Get("unknown")
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestRiskScoreAggregation(t *testing.T) {
	benign := &domain.ProducerIntel{
		MevRate:           0.1,
		ParticipationRate: 0.5,
		SkipRate:          0.04,
	}
	assert.InDelta(t, 0.1*0.25+0.5*0.10+0.04*0.05, RiskScore(benign), 1e-9)

	malicious := &domain.ProducerIntel{
		IsMalicious:       true,
		MevRate:           0.87,
		ParticipationRate: 0.95,
		SkipRate:          0.02,
	}
	assert.InDelta(t, 0.60+0.87*0.25+0.95*0.10+0.02*0.05, RiskScore(malicious), 1e-9)
}

func TestRiskScoreBounds(t *testing.T) {
	assert.Equal(t, DefaultUnknownRisk, RiskScore(nil))

	saturated := &domain.ProducerIntel{
		IsMalicious:       true,
		MevRate:           2.0,
		ParticipationRate: 1.0,
		SkipRate:          1.0,
	}
	assert.Equal(t, 1.0, RiskScore(saturated))
}

func TestSampleIntel(t *testing.T) {
	sample := SampleIntel()
	require.NotEmpty(t, sample)

	for pubkey, p := range sample {
		assert.NoError(t, ValidatePubkey(pubkey))
		assert.Equal(t, pubkey, p.Pubkey)
		assert.True(t, p.IsMalicious)
		assert.Greater(t, RiskScore(p), 0.6)
	}
}
