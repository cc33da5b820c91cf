package log_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/babencoin/babencoin/log"
)

func TestModuleLoggerIncludesModuleAndContext(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.SetLevel(log.LvlTrace)
	defer log.SetLevel(log.LvlInfo)

	logger := log.NewModuleLogger(log.Forest)
	logger.Info("head changed", "index", 3)

	out := buf.String()
	assert.True(t, strings.Contains(out, "[Forest]"))
	assert.True(t, strings.Contains(out, "head changed"))
	assert.True(t, strings.Contains(out, "index=3"))
}

func TestSetLevelFiltersBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.SetLevel(log.LvlWarn)
	defer log.SetLevel(log.LvlInfo)

	logger := log.NewModuleLogger(log.Common)
	logger.Debug("should not appear")
	logger.Warn("should appear")

	out := buf.String()
	assert.False(t, strings.Contains(out, "should not appear"))
	assert.True(t, strings.Contains(out, "should appear"))
}

func TestChildLoggerInheritsContext(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.SetLevel(log.LvlTrace)
	defer log.SetLevel(log.LvlInfo)

	base := log.NewModuleLogger(log.PeerService).New("session", 7)
	base.Info("connected")

	assert.True(t, strings.Contains(buf.String(), "session=7"))
}
