package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestInit_Level(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	Init("prod", "debug")
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	Init("dev", "nonsense")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())

	Init("prod", "")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
