package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestInit_InvalidLevelFallsBackToInfo(t *testing.T) {
	Init("", "not-a-real-level")
	require.Equal(t, logrus.InfoLevel, root.GetLevel())
}

func TestInit_ValidLevelIsApplied(t *testing.T) {
	Init("", "debug")
	require.Equal(t, logrus.DebugLevel, root.GetLevel())
}

func TestInit_LogFileEnablesRotatingWriter(t *testing.T) {
	logFile := t.TempDir() + "/indexer.log"
	Init(logFile, "info")

	For("test").Info("hello")
	require.FileExists(t, logFile)
}

func TestFor_SetsPrefixField(t *testing.T) {
	entry := For("blockprocessor")
	require.Equal(t, "blockprocessor", entry.Data["prefix"])
}

func TestForNetwork_SetsPrefixAndNetworkFields(t *testing.T) {
	entry := ForNetwork("supervisor", "testnet4")
	require.Equal(t, "supervisor", entry.Data["prefix"])
	require.Equal(t, "testnet4", entry.Data["network"])
}
