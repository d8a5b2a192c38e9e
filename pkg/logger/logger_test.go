package logger

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNewParsesLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, New("debug").GetLevel())
	assert.Equal(t, logrus.InfoLevel, New("nonsense").GetLevel())
}

func TestComponentField(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOutput("info", &buf)

	Component(l, "scheduler").Info("tick")

	assert.Contains(t, buf.String(), "component=scheduler")
	assert.Contains(t, buf.String(), "tick")
}
