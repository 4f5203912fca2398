// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/txengine/internal/logger"
)

func TestLogger(t *testing.T) {
	t.Run("level filtering and fields", func(t *testing.T) {
		buf := bytes.NewBuffer(nil)
		log := logger.New("txengine", logger.WithWriter(buf), logger.WithLevel("warn")).Named("refiner")

		log.Infof("skipped %d", 1)
		require.Zero(t, buf.Len())

		log.Warnf("fee grew to %d", 1200)

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		require.Equal(t, "warn", entry["level"])
		require.Equal(t, "txengine", entry["service"])
		require.Equal(t, "refiner", entry["component"])
		require.Equal(t, "fee grew to 1200", entry["message"])
	})

	t.Run("pretty output", func(t *testing.T) {
		buf := bytes.NewBuffer(nil)
		log := logger.New("txengine", logger.WithWriter(buf), logger.WithPretty(true))

		log.Errorf("broadcast failed")
		require.Contains(t, buf.String(), "ERROR")
		require.Contains(t, buf.String(), "broadcast failed")
	})

	t.Run("nop", func(t *testing.T) {
		log := logger.NewNop()
		log.Errorf("nothing")
		log.Named("x").Debugf("nothing")
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"Warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"unknown", zerolog.InfoLevel},
	}

	for _, test := range tests {
		t.Run(test.level, func(t *testing.T) {
			require.Equal(t, test.expected, logger.ParseLevel(test.level))
		})
	}
}
