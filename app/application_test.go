package app

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsEmpty(t *testing.T) {
	assert.True(t, IsEmpty(nil))
	assert.True(t, IsEmpty(json.RawMessage("null")))
	assert.True(t, IsEmpty(json.RawMessage(" null\n")))
	assert.True(t, IsEmpty(json.RawMessage(nil)))
	assert.True(t, IsEmpty([]byte("")))

	assert.False(t, IsEmpty(map[string]int{"count": 1}))
	assert.False(t, IsEmpty(json.RawMessage(`{}`)))
	assert.False(t, IsEmpty(""))
	assert.False(t, IsEmpty(0))
}

func TestEncode(t *testing.T) {
	out, err := Encode(map[string]int{"count": 1})
	require.NoError(t, err)
	assert.Equal(t, `{"count":1}`, out)

	out, err = Encode(json.RawMessage("{ \"count\" : 1 }"))
	require.NoError(t, err)
	assert.Equal(t, `{"count":1}`, out)

	out, err = Encode("hello")
	require.NoError(t, err)
	assert.Equal(t, `"hello"`, out)

	_, err = Encode(json.RawMessage("{broken"))
	require.Error(t, err)

	_, err = Encode(make(chan int))
	require.Error(t, err)

	_, err = Encode(nil)
	require.Error(t, err)
}
