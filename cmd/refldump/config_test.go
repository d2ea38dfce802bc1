package main

import (
	"testing"

	"refldump/process"
	"refldump/reflection"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in   string
		want process.ProcessMemoryAddress
		ok   bool
	}{
		{"0x140001000", 0x140001000, true},
		{"140001000", 0x140001000, true},
		{"0X14000`1000", 0x140001000, true},
		{"#4096", 4096, true},
		{"", 0, false},
		{"0xzz", 0, false},
	}
	for _, test := range tests {
		got, err := parseAddress(test.in)
		if !test.ok {
			assert.Error(t, err, test.in)
			continue
		}
		require.NoError(t, err, test.in)
		assert.Equal(t, test.want, got, test.in)
	}
}

func TestParseRange(t *testing.T) {
	r, err := parseRange("0x1000-0x1050")
	require.NoError(t, err)
	assert.Equal(t, reflection.Range{Start: 0x1000, End: 0x1050}, r)
	assert.Equal(t, 2, r.Len())

	r, err = parseRange("0x1000+0x28")
	require.NoError(t, err)
	assert.Equal(t, reflection.Range{Start: 0x1000, End: 0x1028}, r)

	_, err = parseRange("0x1000")
	assert.Error(t, err)
	_, err = parseRange("0x1000-nope")
	assert.Error(t, err)
}

func TestLimitsFromConfig(t *testing.T) {
	v := viper.New()
	assert.Equal(t, reflection.DefaultLimits(), limitsFromConfig(v))

	v.Set("limits.max-members", 16)
	v.Set("limits.string-limit", 0)
	limits := limitsFromConfig(v)
	assert.Equal(t, 16, limits.MaxMembers)
	assert.Equal(t, reflection.DefaultLimits().StringLimit, limits.StringLimit)
	assert.Equal(t, reflection.DefaultLimits().MaxClasses, limits.MaxClasses)
}

func TestSignatureFromConfig(t *testing.T) {
	v := viper.New()
	aob, err := signatureFromConfig(v)
	require.NoError(t, err)
	assert.Equal(t, 13, aob.Len())
	assert.True(t, aob.IsWildcard(3))

	v.Set("scan.signature", "48 8D 15 ?? ?? ?? ?? E8")
	aob, err = signatureFromConfig(v)
	require.NoError(t, err)
	assert.Equal(t, 8, aob.Len())

	v.Set("scan.signature", "48 8D QQ")
	_, err = signatureFromConfig(v)
	assert.Error(t, err)
}

func TestOpenImageSelection(t *testing.T) {
	_, err := openImage(imageFlags{})
	assert.Error(t, err)

	_, err = openImage(imageFlags{dump: "a", pe: "b"})
	assert.Error(t, err)
}
