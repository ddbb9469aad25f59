package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandRegistration(t *testing.T) {
	want := map[string]bool{
		"ingest":  false,
		"weather": false,
		"covid":   false,
		"stats":   false,
		"serve":   false,
		"runs":    false,
	}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		assert.True(t, found, "command %s not registered", name)
	}
}

func TestIngestFlags(t *testing.T) {
	for _, name := range []string{"calls", "weather", "covid", "dmin", "dmax", "rebuild"} {
		assert.NotNil(t, ingestCmd.Flags().Lookup(name), name)
	}
}

func TestMergeCommandFlags(t *testing.T) {
	require.NotNil(t, weatherCmd.Flags().Lookup("csv"))
	require.NotNil(t, weatherCmd.Flags().Lookup("fields"))
	require.NotNil(t, weatherCmd.Flags().Lookup("rebuild"))
	require.NotNil(t, covidCmd.Flags().Lookup("csv"))
	require.NotNil(t, covidCmd.Flags().Lookup("rebuild"))
}

func TestStatsFlags(t *testing.T) {
	assert.NotNil(t, statsCmd.Flags().Lookup("date"))
	assert.NotNil(t, statsCmd.Flags().Lookup("between"))
	assert.NotNil(t, serveCmd.Flags().Lookup("port"))
}
