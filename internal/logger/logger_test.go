package logger

import (
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logrus.InfoLevel, ParseLevel("info"))
	assert.Equal(t, logrus.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, logrus.DebugLevel, ParseLevel("loud"))
}

func TestSetup(t *testing.T) {
	log := Setup(t.TempDir()+"/app.log", "warn")
	defer func() {
		logrus.SetOutput(os.Stderr)
		logrus.SetLevel(logrus.InfoLevel)
	}()

	assert.Equal(t, logrus.WarnLevel, log.GetLevel())
	assert.NotNil(t, Output())
	assert.NotNil(t, GormLogger())
}
