package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrivacyMode(t *testing.T) {
	tests := []struct {
		input   string
		want    PrivacyMode
		wantErr bool
	}{
		{input: "private", want: PrivacyPrivate},
		{input: "public", want: PrivacyPublic},
		{input: "monetizable", want: PrivacyMonetizable},
		{input: "secret", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParsePrivacyMode(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStageIndex(t *testing.T) {
	assert.Equal(t, 0, StageCreated.Index())
	assert.Equal(t, 4, StageHighValue.Index())
	assert.Equal(t, -1, StageName("unknown").Index())
}

func TestParseMetricAndFormat(t *testing.T) {
	m, err := ParseMetric("volume")
	require.NoError(t, err)
	assert.Equal(t, MetricVolume, m)

	_, err = ParseMetric("avg_productivity")
	assert.Error(t, err)

	f, err := ParseExportFormat("csv")
	require.NoError(t, err)
	assert.Equal(t, ExportCSV, f)

	_, err = ParseExportFormat("xlsx")
	assert.Error(t, err)
}
