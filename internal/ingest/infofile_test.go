package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeInfo(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "info.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseInfoFile(t *testing.T) {
	path := writeInfo(t, `Description: Black oversize bomber jacket
ID: JKT-001
Price: 1,450.50
Category: jacket
Color: black
`)

	info, err := parseInfoFile(path)

	require.NoError(t, err)
	assert.Equal(t, "Black oversize bomber jacket", info.Description)
	assert.Equal(t, "JKT-001", info.ID)
	assert.Equal(t, 1450.50, info.Price)
	assert.Equal(t, "jacket", info.Category)
	assert.Equal(t, "black", info.Color)
}

func TestParseInfoFileKeysCaseInsensitive(t *testing.T) {
	path := writeInfo(t, "DESCRIPTION: plain tee\nprice: 200\n")

	info, err := parseInfoFile(path)

	require.NoError(t, err)
	assert.Equal(t, "plain tee", info.Description)
	assert.Equal(t, 200.0, info.Price)
}

func TestParseInfoFilePriceCleanup(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  float64
	}{
		{"currency symbol", "$750", 750},
		{"thousands separator", "2,500", 2500},
		{"sale placeholder", "SALE PRICE", 0},
		{"unparsable", "ask in store", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeInfo(t, "Price: "+tt.value+"\n")
			info, err := parseInfoFile(path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, info.Price)
		})
	}
}

func TestParseInfoFileIgnoresNoiseLines(t *testing.T) {
	path := writeInfo(t, "\nsome note without separator\nDescription: denim jeans\nUnknown: ignored\n")

	info, err := parseInfoFile(path)

	require.NoError(t, err)
	assert.Equal(t, "denim jeans", info.Description)
	assert.Empty(t, info.ID)
}

func TestParseInfoFileValueMayContainColon(t *testing.T) {
	path := writeInfo(t, "Description: fit: slim, style: casual\n")

	info, err := parseInfoFile(path)

	require.NoError(t, err)
	assert.Equal(t, "fit: slim, style: casual", info.Description)
}
