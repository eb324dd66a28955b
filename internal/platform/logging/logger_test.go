package logging_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/m-mizutani/gt"

	"workforce/internal/platform/logging"
)

func TestParseFormat(t *testing.T) {
	f, err := logging.ParseFormat("JSON")
	gt.NoError(t, err)
	gt.Equal(t, f, logging.FormatJSON)

	f, err = logging.ParseFormat("")
	gt.NoError(t, err)
	gt.Equal(t, f, logging.FormatAuto)

	_, err = logging.ParseFormat("xml")
	gt.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	gt.Equal(t, logging.ParseLevel("debug"), slog.LevelDebug)
	gt.Equal(t, logging.ParseLevel("WARNING"), slog.LevelWarn)
	gt.Equal(t, logging.ParseLevel("bogus"), slog.LevelInfo)
}

func TestAutoFormatWritesJSONToBuffers(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(slog.LevelInfo, &buf, logging.FormatAuto)
	logger.Info("sweep finished", "tenantId", "t1")
	gt.S(t, buf.String()).Contains(`"msg":"sweep finished"`)
	gt.S(t, buf.String()).Contains(`"tenantId":"t1"`)

	buf.Reset()
	logger.Debug("hidden")
	gt.Equal(t, buf.Len(), 0)
}
