package cliflag

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFlag(t *testing.T) {
	tests := []struct {
		args    []string
		want    string
		wantErr bool
	}{
		{nil, OutputTable, false},
		{[]string{"-o", "json"}, OutputJSON, false},
		{[]string{"--output=JSON"}, OutputJSON, false},
		{[]string{"--output", "table"}, OutputTable, false},
		{[]string{"--output", "yaml"}, "", true},
	}
	for _, tt := range tests {
		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		AddOutputFlag(fs)
		err := fs.Parse(tt.args)
		if tt.wantErr {
			assert.Error(t, err, "%v", tt.args)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, GetOutput(fs), "%v", tt.args)
	}
}

func TestGetOutputWithoutFlag(t *testing.T) {
	assert.Equal(t, OutputTable, GetOutput(pflag.NewFlagSet("test", pflag.ContinueOnError)))
}
