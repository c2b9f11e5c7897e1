package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObject_SortedKeysUTF16(t *testing.T) {
	obj := Object{
		"\uFB00":     Int(1),
		"\U0001F600": Int(2),
		"b":          Int(3),
		"a":          Int(4),
	}
	// U+1F600 encodes as a surrogate pair (0xD83D...) which sorts before
	// U+FB00 in UTF-16, although its UTF-8 form sorts after.
	assert.Equal(t, []string{"a", "b", "\U0001F600", "\uFB00"}, obj.SortedKeys())
}

func TestObject_MarshalJSONSorted(t *testing.T) {
	obj := Object{"z": Bool(true), "a": Array{String("x"), Int(2)}, "m": Null{}}
	data, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":["x",2],"m":null,"z":true}`, string(data))
}

func TestUnmarshalValue(t *testing.T) {
	v, err := UnmarshalValue([]byte(`{"n":9007199254740993,"s":"x","l":[true,null]}`))
	require.NoError(t, err)
	assert.Equal(t, Object{
		"n": Int(9007199254740993),
		"s": String("x"),
		"l": Array{Bool(true), Null{}},
	}, v)
}

func TestUnmarshalValue_RejectsFloats(t *testing.T) {
	for _, in := range []string{`1.5`, `1e3`, `{"a":[2.0]}`} {
		_, err := UnmarshalValue([]byte(in))
		assert.Error(t, err, in)
	}
}

func TestUnmarshalObject(t *testing.T) {
	obj, err := UnmarshalObject([]byte(`{"agentId":"a-1","pid":42}`))
	require.NoError(t, err)
	assert.Equal(t, Object{"agentId": String("a-1"), "pid": Int(42)}, obj)

	obj, err = UnmarshalObject([]byte(`null`))
	require.NoError(t, err)
	assert.Nil(t, obj)

	_, err = UnmarshalObject([]byte(`[1]`))
	assert.Error(t, err)
}

func TestObject_EmbeddedInStruct(t *testing.T) {
	type envelope struct {
		Records []Object `json:"records"`
	}
	var env envelope
	require.NoError(t, json.Unmarshal([]byte(`{"records":[{"a":1},{"b":"x"}]}`), &env))
	require.Len(t, env.Records, 2)
	assert.Equal(t, Int(1), env.Records[0]["a"])
	assert.Equal(t, String("x"), env.Records[1]["b"])
}

func TestMarshalValue_NestedDocument(t *testing.T) {
	doc := Object{
		"tags": Array{String("b"), String("a")},
		"host": Object{"name": String("h1"), "cpus": Int(8)},
		"gone": nil,
	}
	data, err := MarshalValue(doc)
	require.NoError(t, err)
	assert.Equal(t, `{"gone":null,"host":{"cpus":8,"name":"h1"},"tags":["b","a"]}`, string(data))

	back, err := UnmarshalValue(data)
	require.NoError(t, err)
	assert.Equal(t, Null{}, back.(Object)["gone"])
	assert.Equal(t, doc["host"], back.(Object)["host"])
}

func TestArray_UnmarshalJSON(t *testing.T) {
	var arr Array
	require.NoError(t, json.Unmarshal([]byte(`["a",1,false]`), &arr))
	assert.Equal(t, Array{String("a"), Int(1), Bool(false)}, arr)

	require.NoError(t, json.Unmarshal([]byte(`null`), &arr))
	assert.Nil(t, arr)

	err := json.Unmarshal([]byte(`{"a":1}`), &arr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected JSON array")
}
