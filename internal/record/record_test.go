package record

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordJSONPreservesFieldOrderAndTypes(t *testing.T) {
	t.Parallel()

	input := `{"type":"client","Name":"Ann","Zip Code":"02139","Age":41,"Score":2.50,"VIP":true,"Notes":null,"Tags":["a", "b"],"ID":7}`

	var rec Record
	require.NoError(t, json.Unmarshal([]byte(input), &rec))

	require.Equal(t, []string{"type", "Name", "Zip Code", "Age", "Score", "VIP", "Notes", "Tags", "ID"}, rec.Keys())

	id, ok := rec.ID()
	require.True(t, ok)
	require.Equal(t, int64(7), id)
	require.Equal(t, TypeClient, rec.Type())

	score, _ := rec.Get("Score")
	require.Equal(t, KindNumber, score.Kind())
	require.Equal(t, "2.50", score.Text())

	tags, _ := rec.Get("Tags")
	require.Equal(t, KindRaw, tags.Kind())

	out, err := json.Marshal(&rec)
	require.NoError(t, err)
	require.Equal(t, `{"type":"client","Name":"Ann","Zip Code":"02139","Age":41,"Score":2.50,"VIP":true,"Notes":null,"Tags":["a","b"],"ID":7}`, string(out))
}

func TestRecordUnmarshalRejectsNonObject(t *testing.T) {
	t.Parallel()

	var rec Record
	err := json.Unmarshal([]byte(`[1,2,3]`), &rec)
	require.ErrorIs(t, err, ErrNotObject)
}

func TestRecordIDRequiresPositiveInteger(t *testing.T) {
	t.Parallel()

	cases := map[string]Value{
		"zero":     Int(0),
		"negative": Int(-4),
		"decimal":  Number("3.5"),
		"float":    Number("3.0"),
		"string":   String("3"),
		"null":     Null(),
	}
	for name, value := range cases {
		rec := New(F(FieldID, value))
		_, ok := rec.ID()
		require.Falsef(t, ok, "case %s", name)
	}

	_, ok := New().ID()
	require.False(t, ok)
}

func TestRecordMergeNeverRewritesID(t *testing.T) {
	t.Parallel()

	rec := New(F(FieldID, Int(1)), F(FieldType, String(TypeAirline)), F("Company Name", String("Aer")))
	rec.Merge(New(F(FieldID, Int(99)), F("Company Name", String("Aer Lingus")), F("Hub", String("DUB"))))

	id, ok := rec.ID()
	require.True(t, ok)
	require.Equal(t, int64(1), id)
	require.Equal(t, []string{FieldID, FieldType, "Company Name", "Hub"}, rec.Keys())
	name, _ := rec.Get("Company Name")
	require.Equal(t, String("Aer Lingus"), name)
}

func TestRecordCloneIsIndependent(t *testing.T) {
	t.Parallel()

	rec := New(F("City", String("Oslo")))
	clone := rec.Clone()
	clone.Set("City", String("Bergen"))
	clone.Delete("City")
	clone.Set("Country", String("Norway"))

	city, ok := rec.Get("City")
	require.True(t, ok)
	require.Equal(t, String("Oslo"), city)
	require.False(t, rec.Has("Country"))
}

func TestParseScalar(t *testing.T) {
	t.Parallel()

	require.Equal(t, Int(12), ParseScalar("12"))
	require.Equal(t, Bool(true), ParseScalar("true"))
	require.Equal(t, Null(), ParseScalar("null"))
	require.Equal(t, String("02139"), ParseScalar("02139"))
	require.Equal(t, String("New York"), ParseScalar("New York"))
	require.Equal(t, KindNumber, ParseScalar("-1.5e3").Kind())
}

func TestFromMapSortsKeys(t *testing.T) {
	t.Parallel()

	rec, err := FromMap(map[string]any{"b": 1, "a": "x", "c": nil})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, rec.Keys())
}
