package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_Scalars(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		want string
	}{
		{"string", String("hello"), `"hello"`},
		{"uint zero", Uint(0), `0`},
		{"uint max", Uint(18446744073709551615), `18446744073709551615`},
		{"true", Bool(true), `true`},
		{"false", Bool(false), `false`},
		{"empty object", Object{}, `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalCanonical_SortsKeys(t *testing.T) {
	got, err := MarshalCanonical(Object{
		"judge":    String("j"),
		"creator":  String("c"),
		"deadline": Uint(10),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"creator":"c","deadline":10,"judge":"j"}`, string(got))
}

func TestMarshalCanonical_UTF16KeyOrder(t *testing.T) {
	// U+FF61 sorts before U+1F600 in UTF-8 byte order but after it in
	// UTF-16 code units (the emoji encodes as the 0xD83D surrogate).
	got, err := MarshalCanonical(Object{
		"\U0001F600": Uint(1),
		"\uFF61":     Uint(2),
	})
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":1,\"\uFF61\":2}", string(got))
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	got, err := MarshalCanonical(String("<a&b>"))
	require.NoError(t, err)
	assert.Equal(t, `"<a&b>"`, string(got))
}

func TestMarshalCanonical_LineSeparatorsLiteral(t *testing.T) {
	got, err := MarshalCanonical(String("a\u2028b\u2029c"))
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\u2029c\"", string(got))
}

func TestMarshalCanonical_EscapedBackslashPreserved(t *testing.T) {
	// A literal backslash followed by the text u2028 is not a separator.
	got, err := MarshalCanonical(String(`\u2028`))
	require.NoError(t, err)
	assert.Equal(t, `"\\u2028"`, string(got))
}

func TestMarshalCanonical_ControlCharactersEscaped(t *testing.T) {
	got, err := MarshalCanonical(String("a\nb\"c"))
	require.NoError(t, err)
	assert.Equal(t, `"a\nb\"c"`, string(got))
}

func TestMarshalCanonical_NFC(t *testing.T) {
	got, err := MarshalCanonical(String("cafe\u0301"))
	require.NoError(t, err)
	assert.Equal(t, "\"caf\u00e9\"", string(got))
}

func TestMarshalCanonical_Nested(t *testing.T) {
	got, err := MarshalCanonical(Object{
		"outer": Object{"b": Bool(true), "a": String("x")},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"outer":{"a":"x","b":true}}`, string(got))
}

func TestMarshalCanonical_Nil(t *testing.T) {
	_, err := MarshalCanonical(nil)
	assert.Error(t, err)

	_, err = MarshalCanonical(Object{"k": nil})
	assert.Error(t, err)
}

func TestMarshalCanonical_RejectsInvalidUTF8(t *testing.T) {
	_, err := MarshalCanonical(String("gym\xff"))
	assert.Error(t, err)

	_, err = MarshalCanonical(Object{"owner": String("sam\xfe")})
	assert.Error(t, err)
}
