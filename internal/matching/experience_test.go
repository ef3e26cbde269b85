package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTier(t *testing.T) {
	tests := []struct {
		in     string
		want   Tier
		wantOK bool
	}{
		{"Expert calculus tutor", TierExpert, true},
		{"Guru berpengalaman", TierSenior, true},
		{"intermediate", TierIntermediate, true},
		{"pemula", TierNovice, true},
		{"8 years teaching IB math", TierExpert, true},
		{"3 tahun", TierSenior, true},
		{"2 yrs", TierIntermediate, true},
		{"0.5 years", TierNovice, true},
		{"1,5 tahun sebagai pengajar", TierIntermediate, true},
		{"senior but 1 year here", TierIntermediate, true},
		{"", TierNovice, false},
		{"loves teaching", TierNovice, false},
		{"inexperienced", TierNovice, false},
		{"not an expert yet", TierNovice, false},
		{"membaru", TierNovice, false},
		{"belum berpengalaman, pemula", TierNovice, true},
		{"Expert, not a beginner", TierExpert, true},
		{"fresh graduate", TierNovice, true},
		{"mid-level physics", TierIntermediate, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseTier(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestHaversineKm(t *testing.T) {
	jkt := GeoPoint{Lat: -6.2088, Lng: 106.8456}
	bdg := GeoPoint{Lat: -6.9175, Lng: 107.6191}
	assert.InDelta(t, 116.0, HaversineKm(jkt, bdg), 2.0)
	assert.Zero(t, HaversineKm(jkt, jkt))
}

func TestTier_String(t *testing.T) {
	assert.Equal(t, "senior", TierSenior.String())
	assert.Equal(t, "novice", Tier(-1).String())
}
