package validation

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/finboard/backend/src/logger"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Treasury", "Treasury"},
		{"trims whitespace", "  Treasury  ", "Treasury"},
		{"strips html", "<b>Treasury</b>", "Treasury"},
		{"strips script with content", "<script>alert(1)</script>Treasury", "Treasury"},
		{"formula injection", "=SUM(A1)", "'=SUM(A1)"},
		{"only whitespace", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeName(tt.input))
		})
	}
}

func TestValidateClientContentType(t *testing.T) {
	assert.NoError(t, ValidateClientContentType("text/csv"))
	assert.NoError(t, ValidateClientContentType("text/plain"))
	assert.Error(t, ValidateClientContentType("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"))
	assert.Error(t, ValidateClientContentType("image/png"))
}

func TestValidateFileContentByMagicBytes(t *testing.T) {
	t.Run("csv text passes and pointer resets", func(t *testing.T) {
		content := []byte("Date,Amount\n2025-06-01,100\n")
		r := bytes.NewReader(content)

		detected, err := ValidateFileContentByMagicBytes(r)
		require.NoError(t, err)
		assert.Equal(t, "text/plain", detected)

		rest := make([]byte, len(content))
		n, _ := r.Read(rest)
		assert.Equal(t, content, rest[:n])
	})

	t.Run("png header rejected", func(t *testing.T) {
		_, err := ValidateFileContentByMagicBytes(bytes.NewReader([]byte("\x89PNG\r\n\x1a\nxxxx")))
		assert.Error(t, err)
	})

	t.Run("nil file rejected", func(t *testing.T) {
		_, err := ValidateFileContentByMagicBytes(nil)
		assert.Error(t, err)
	})
}
