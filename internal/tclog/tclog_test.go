package tclog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyLogPathRendersPattern(t *testing.T) {
	when := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	path, err := DailyLogPath("/var/log/tcbridge", "%Y-%m-%d.log", when)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/var/log/tcbridge", "2026-07-30.log"), path)
}

func TestOpenDailyCreatesAndReopensOnRollover(t *testing.T) {
	dir := t.TempDir()
	day1 := time.Date(2026, 7, 30, 23, 59, 0, 0, time.UTC)
	day2 := time.Date(2026, 7, 31, 0, 0, 1, 0, time.UTC)

	f1, err := OpenDaily(dir, "%Y-%m-%d.log", day1, nil)
	require.NoError(t, err)
	defer f1.Close()

	_, statErr := os.Stat(filepath.Join(dir, "2026-07-30.log"))
	assert.NoError(t, statErr)

	f2, err := OpenDaily(dir, "%Y-%m-%d.log", day2, f1)
	require.NoError(t, err)
	defer f2.Close()

	assert.NotEqual(t, f1.Name(), f2.Name())
	_, statErr = os.Stat(filepath.Join(dir, "2026-07-31.log"))
	assert.NoError(t, statErr)
}

func TestOpenDailySameDayReusesHandle(t *testing.T) {
	dir := t.TempDir()
	day := time.Date(2026, 7, 30, 8, 0, 0, 0, time.UTC)
	laterSameDay := time.Date(2026, 7, 30, 20, 0, 0, 0, time.UTC)

	f1, err := OpenDaily(dir, "%Y-%m-%d.log", day, nil)
	require.NoError(t, err)
	defer f1.Close()

	f2, err := OpenDaily(dir, "%Y-%m-%d.log", laterSameDay, f1)
	require.NoError(t, err)
	assert.Same(t, f1, f2)
}
