package csvio

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyntus/facturation/constants"
)

func TestSniffDelimiter(t *testing.T) {
	tests := []struct {
		name      string
		first     string
		requested rune
		want      rune
	}{
		{"requested present", "a;b;c", ';', ';'},
		{"requested kept despite slightly better candidate", "a;b,c,d", ';', ';'},
		{"requested overridden by wide margin", "a;b,c,d,e,f", ';', ','},
		{"requested absent falls back to sniff", "a\tb\tc", ';', '\t'},
		{"nothing to sniff keeps request", "abc", ';', ';'},
		{"pipe wins", "a|b|c|d", ',', '|'},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SniffDelimiter([]byte(tt.first+"\n1;2\n"), tt.requested, 64*1024)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectAndDecode(t *testing.T) {
	t.Run("utf8 bom stripped", func(t *testing.T) {
		out, enc, err := DetectAndDecode(append([]byte{0xEF, 0xBB, 0xBF}, []byte("Numéro")...))
		require.NoError(t, err)
		assert.Equal(t, "utf-8-bom", enc)
		assert.Equal(t, "Numéro", string(out))
	})
	t.Run("windows-1252 fallback", func(t *testing.T) {
		// "clôturé" in cp1252
		raw := []byte{'c', 'l', 0xF4, 't', 'u', 'r', 0xE9}
		out, enc, err := DetectAndDecode(raw)
		require.NoError(t, err)
		assert.Equal(t, "windows-1252", enc)
		assert.Equal(t, "clôturé", string(out))
	})
	t.Run("plain utf8 untouched", func(t *testing.T) {
		out, enc, err := DetectAndDecode([]byte("Clôture"))
		require.NoError(t, err)
		assert.Equal(t, "utf-8", enc)
		assert.Equal(t, "Clôture", string(out))
	})
}

func TestRepairMojibake(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"double encoded accents repaired", "ClÃ´turÃ©", "Clôturé"},
		{"clean text untouched", "Clôturé", "Clôturé"},
		{"ascii untouched", "DMS", "DMS"},
		{"lone marker without gain kept", "Ã", "Ã"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RepairMojibake(tt.in))
		})
	}
}

func TestParse(t *testing.T) {
	data := []byte("N° OT;Statut;Commentaire\nOT100;CLOTURE;ras\nOT101;PLANIFIE\nOT102;OK;x;extra\n")
	res, err := Parse(data, constants.FeedPraxedo, uuid.New(), ';', 64*1024)
	require.NoError(t, err)

	assert.Equal(t, []string{"N° OT", "Statut", "Commentaire"}, res.Headers)
	require.Len(t, res.Rows, 3)
	assert.Equal(t, "OT100", res.Rows[0].Get("N° OT"))
	assert.Equal(t, 1, res.Rows[0].Line)

	// short row padded, long row truncated, both warned
	assert.Equal(t, "", res.Rows[1].Get("Commentaire"))
	assert.Equal(t, "x", res.Rows[2].Get("Commentaire"))
	assert.Len(t, res.Warnings, 2)
}

func TestParseEmptyFile(t *testing.T) {
	_, err := Parse(nil, constants.FeedPraxedo, uuid.New(), ';', 0)
	require.Error(t, err)

	_, err = Parse([]byte("a;b\n"), constants.FeedPraxedo, uuid.New(), ';', 0)
	require.Error(t, err, "header-only file has no data rows")
}
