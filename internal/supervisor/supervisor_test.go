package supervisor

import (
	"testing"

	"github.com/lanewave/tcbridge/internal/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstEngineIsPrimaryAndGetsPassthru(t *testing.T) {
	s := New(48000, 512)
	idx, err := s.AddEngine(settings.EngineSettings{Name: "A"})
	require.NoError(t, err)
	require.Equal(t, 0, idx)

	me := s.Engine(0)
	require.NotNil(t, me)
	assert.True(t, me.Primary)
	assert.NotNil(t, me.Passthru)
}

func TestAddEngineRejectsBeyondMax(t *testing.T) {
	s := New(48000, 512)
	for i := 0; i < 8; i++ {
		_, err := s.AddEngine(settings.EngineSettings{Name: "E"})
		require.NoError(t, err)
	}
	_, err := s.AddEngine(settings.EngineSettings{Name: "overflow"})
	assert.Error(t, err)
}

func TestRemovePrimaryPromotesNextAndTearsDownOldPassthru(t *testing.T) {
	s := New(48000, 512)
	s.AddEngine(settings.EngineSettings{Name: "A"})
	s.AddEngine(settings.EngineSettings{Name: "B"})

	oldPrimaryPassthru := s.Engine(0).Passthru
	require.NotNil(t, oldPrimaryPassthru)

	require.NoError(t, s.RemoveEngine(0))
	require.Equal(t, 1, s.Count())

	newPrimary := s.Engine(0)
	assert.Equal(t, "B", newPrimary.Settings.Name)
	assert.True(t, newPrimary.Primary)
	assert.NotNil(t, newPrimary.Passthru)
	assert.NotSame(t, oldPrimaryPassthru, newPrimary.Passthru)
}

func TestRemoveNonPrimaryLeavesPrimaryUntouched(t *testing.T) {
	s := New(48000, 512)
	s.AddEngine(settings.EngineSettings{Name: "A"})
	s.AddEngine(settings.EngineSettings{Name: "B"})
	primaryPassthru := s.Engine(0).Passthru

	require.NoError(t, s.RemoveEngine(1))
	assert.Equal(t, 1, s.Count())
	assert.Same(t, primaryPassthru, s.Engine(0).Passthru)
}

func TestDeviceOpenFlagsCrossEngineConflictButAllows(t *testing.T) {
	s := New(48000, 512)
	s.AddEngine(settings.EngineSettings{Name: "A"})
	s.AddEngine(settings.EngineSettings{Name: "B"})

	conflict0 := s.NoteDeviceOpen(NamespaceMTCOut, "IAC Bus 1", 0)
	conflict1 := s.NoteDeviceOpen(NamespaceMTCOut, "IAC Bus 1", 1)

	assert.False(t, conflict0, "first opener sees no conflict")
	assert.True(t, conflict1, "second opener on the same device is flagged")
}

func TestDeviceOpenDifferentNamespacesDoNotConflict(t *testing.T) {
	s := New(48000, 512)
	s.AddEngine(settings.EngineSettings{Name: "A"})

	c1 := s.NoteDeviceOpen(NamespaceMTCOut, "shared-name", 0)
	c2 := s.NoteDeviceOpen(NamespaceArtnetOut, "shared-name", 0)
	assert.False(t, c1)
	assert.False(t, c2)
}

func TestSameEngineLtcOutPassthruConflictStopsPassthru(t *testing.T) {
	s := New(48000, 512)
	s.AddEngine(settings.EngineSettings{Name: "A"})

	status := s.CheckSameEngineLtcOutConflict(0, "Built-in Output", "Built-in Output")
	assert.Contains(t, status, "CONFLICT")
	assert.Equal(t, "CONFLICT: same device as LTC OUT", s.Engine(0).Status["passthruOut"])
}

func TestSameEngineDifferentDevicesNoConflict(t *testing.T) {
	s := New(48000, 512)
	s.AddEngine(settings.EngineSettings{Name: "A"})

	status := s.CheckSameEngineLtcOutConflict(0, "Output A", "Output B")
	assert.Empty(t, status)
}

func TestStartStopIsIdempotentAndTicksEngines(t *testing.T) {
	s := New(48000, 512)
	s.AddEngine(settings.EngineSettings{Name: "A"})

	nowMs := int64(0)
	s.Start(func() int64 { return nowMs })
	s.Stop()
	s.Stop() // idempotent: must not panic or block
}
