package config

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper_Defaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	c, err := FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, SeedConfig{
		Overhang:    100,
		MinBlockLen: 10,
		MinTermLen:  10,
		MinScore:    50,
		CodonCheck:  true,
	}, c.Seed)
	assert.GreaterOrEqual(t, c.Workers, 1)
	assert.False(t, c.Verbose)
}

func TestFromViper_File(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
seed:
  overhang: 40
  codon-check: false
workers: 3
progress: true
`)))

	c, err := FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, 40, c.Seed.Overhang)
	assert.False(t, c.Seed.CodonCheck)
	assert.Equal(t, 10, c.Seed.MinTermLen)
	assert.Equal(t, 3, c.Workers)
	assert.True(t, c.Progress)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		set  func(v *viper.Viper)
	}{
		{"negative overhang", func(v *viper.Viper) { v.Set("seed.overhang", -1) }},
		{"negative block floor", func(v *viper.Viper) { v.Set("seed.min-block-len", -5) }},
		{"negative terminal floor", func(v *viper.Viper) { v.Set("seed.min-term-len", -5) }},
		{"negative score", func(v *viper.Viper) { v.Set("seed.min-score", -0.5) }},
		{"no workers", func(v *viper.Viper) { v.Set("workers", 0) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			SetDefaults(v)
			tt.set(v)

			_, err := FromViper(v)
			assert.Error(t, err)
		})
	}
}
