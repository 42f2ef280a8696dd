package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	tests := []struct {
		raw  string
		want map[string]string
	}{
		{"", map[string]string{}},
		{"x-honeycomb-team=abc", map[string]string{"x-honeycomb-team": "abc"}},
		{"a=1, b=2", map[string]string{"a": "1", "b": "2"}},
		{"broken,=nokey,c=3=4", map[string]string{"c": "3=4"}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseHeaders(tt.raw), tt.raw)
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "quoter dev"), out.String())
}

func TestQuoteCommand_RequiresPair(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"quote", "--amount", "1"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}
