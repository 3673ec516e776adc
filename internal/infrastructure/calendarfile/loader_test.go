package calendarfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/NoticeFlow/internal/testutil"
	pkgerrors "github.com/turtacn/NoticeFlow/pkg/errors"
)

const sample = `
aliases:
  TRT03: TRT3
jurisdictions:
  TRT3:
    - 2025-06-19
    - { date: 2025-04-21, name: Tiradentes }
  tjmg:
    - 2025-06-20
`

func TestDecode(t *testing.T) {
	reg, err := Decode(strings.NewReader(sample), map[string]string{"MG": "TJMG"})
	require.NoError(t, err)

	assert.Equal(t, []string{"TJMG", "TRT3"}, reg.Jurisdictions())
	assert.True(t, reg.Calendar("trt03").IsHoliday(testutil.Date(2025, 6, 19)))
	assert.True(t, reg.Calendar("TRT3").IsHoliday(testutil.Date(2025, 4, 21)))
	assert.True(t, reg.Calendar("MG").IsHoliday(testutil.Date(2025, 6, 20)))
	assert.False(t, reg.Known("TRF6"))
}

func TestDecode_TRT3Scenario(t *testing.T) {
	reg, err := Decode(strings.NewReader(sample), nil)
	require.NoError(t, err)

	due, err := reg.Advance("TRT3", testutil.Date(2025, 6, 2), 8)
	require.NoError(t, err)
	assert.Equal(t, testutil.Date(2025, 6, 12), due)
}

func TestDecode_Errors(t *testing.T) {
	cases := map[string]string{
		"bad date":      "jurisdictions:\n  TJMG:\n    - 2025-13-01\n",
		"unknown field": "holidays:\n  TJMG: []\n",
		"not yaml":      "jurisdictions: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(body), nil)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeCalendarSourceInvalid))
		})
	}
}

func TestDecode_Empty(t *testing.T) {
	reg, err := Decode(strings.NewReader(""), nil)
	require.NoError(t, err)
	assert.Empty(t, reg.Jurisdictions())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "holidays.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	reg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Len(t, reg.Jurisdictions(), 2)

	reg, err = Load("", nil)
	require.NoError(t, err)
	assert.Empty(t, reg.Jurisdictions())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeCalendarSourceInvalid))
}

func TestLoad_ShippedFile(t *testing.T) {
	reg, err := Load(filepath.Join("..", "..", "..", "configs", "holidays.yaml"), nil)
	require.NoError(t, err)
	assert.True(t, reg.Known("TJMG"))
	assert.True(t, reg.Calendar("TRT-3").IsHoliday(testutil.Date(2025, 6, 19)))
}
