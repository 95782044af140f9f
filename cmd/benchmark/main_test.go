package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	testCases := []struct {
		value    string
		expected int64
	}{
		{"00:01:01.12", 60*1000 + 1000 + 120},
		{"01:01:01.12", 60*60*1000 + 60*1000 + 1000 + 120},
		{"1:01.12", 60*1000 + 1000 + 120},
		{"0:00.12", 120},
		{"00:00:00.12", 120},
	}

	for _, testCase := range testCases {
		duration, err := parseDuration(testCase.value)
		require.NoError(t, err, testCase.value)
		assert.Equal(t, testCase.expected, duration, testCase.value)
	}

	_, err := parseDuration("12")
	assert.Error(t, err)
}

func TestParseTimeOutput(t *testing.T) {
	//** Act
	duration, errDuration := parseDurationLine("\tElapsed (wall clock) time (h:mm:ss or m:ss): 0:02.51")
	memory, errMemory := parseMemoryLine("\tMaximum resident set size (kbytes): 20480")
	cpu, errCpu := parseCpuPercentageLine("\tPercent of CPU this job got: 187%")

	//** Assert
	require.NoError(t, errDuration)
	require.NoError(t, errMemory)
	require.NoError(t, errCpu)
	assert.Equal(t, int64(2510), duration)
	assert.Equal(t, float32(20), memory)
	assert.Equal(t, int64(187), cpu)
}
