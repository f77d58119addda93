package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lookaround-map/viewer/internal/geo"
	"github.com/lookaround-map/viewer/pkg/core"
)

func TestRootCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["candidates"])
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
}

type navigatedLog struct{ ids []string }

func (l *navigatedLog) Navigated(p core.Panorama) { l.ids = append(l.ids, p.ID) }
func (l *navigatedLog) LoadProgress(float64) {}
func (l *navigatedLog) MarkerChanged(core.MarkerState) {}

func TestEvents_NoRecorder(t *testing.T) {
	log := &navigatedLog{}
	e := events{Events: log}

	e.Navigated(core.Panorama{ID: "a"})
	e.LoadProgress(0.5)
	require.Equal(t, []string{"a"}, log.ids)
}

func TestCandidates_RejectsBadLocation(t *testing.T) {
	rootCmd.SetArgs([]string{"candidates", "north"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinates)
}

func TestCandidates_NeedsOneArg(t *testing.T) {
	assert.Error(t, candidatesCmd.Args(candidatesCmd, nil))
	assert.NoError(t, candidatesCmd.Args(candidatesCmd, []string{"13.4,52.5"}))
}
