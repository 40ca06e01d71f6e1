package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYesNoJSON(t *testing.T) {
	var f struct {
		Flag YesNo `json:"flag"`
	}
	for raw, want := range map[string]bool{
		`{"flag":"S"}`:   true,
		`{"flag":"n"}`:   false,
		`{"flag":true}`:  true,
		`{"flag":0}`:     false,
		`{"flag":null}`:  false,
		`{"flag":"yes"}`: true,
	} {
		require.NoError(t, json.Unmarshal([]byte(raw), &f), raw)
		assert.Equal(t, want, bool(f.Flag), raw)
	}
	assert.Error(t, json.Unmarshal([]byte(`{"flag":"maybe"}`), &f))

	out, err := json.Marshal(YesNo(true))
	require.NoError(t, err)
	assert.Equal(t, `"S"`, string(out))
}

func TestYesNoScan(t *testing.T) {
	var b YesNo
	require.NoError(t, b.Scan([]byte("S")))
	assert.True(t, bool(b))
	require.NoError(t, b.Scan(nil))
	assert.False(t, bool(b))
	v, err := YesNo(false).Value()
	require.NoError(t, err)
	assert.Equal(t, "N", v)
}

func TestFindingTypeValid(t *testing.T) {
	assert.True(t, FindingCaries.Valid())
	assert.True(t, FindingSano.Valid())
	assert.True(t, FindingObturacion.Valid())
	assert.False(t, FindingType("PLACA").Valid())
}

func TestParseToothStatus(t *testing.T) {
	st, ok := ParseToothStatus(" caries ")
	assert.True(t, ok)
	assert.Equal(t, ToothCaries, st)
	_, ok = ParseToothStatus("ROTO")
	assert.False(t, ok)
}

func TestOdontogramLookups(t *testing.T) {
	o := &Odontogram{Teeth: []*Tooth{{ID: 5, FDI: 11}, {ID: 6, FDI: 12}}}
	assert.Equal(t, int64(6), o.ToothByFDI(12).ID)
	assert.Equal(t, 11, o.ToothByID(5).FDI)
	assert.Nil(t, o.ToothByFDI(48))
	var nilOdo *Odontogram
	assert.Nil(t, nilOdo.ToothByID(1))
}
