package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributes_MergeKeepsSiblings(t *testing.T) {
	base, err := NewAttributes(map[string]any{AttrDeviceID: "dev-1", "lang": "ru"})
	require.NoError(t, err)
	patch, err := NewAttributes(map[string]any{AttrDeviceID: "dev-2", AttrTokens: nil})
	require.NoError(t, err)

	merged := base.Merge(patch)

	assert.JSONEq(t, `"dev-2"`, string(merged[AttrDeviceID]))
	assert.JSONEq(t, `"ru"`, string(merged["lang"]))
	assert.JSONEq(t, `null`, string(merged[AttrTokens]))
	// исходный набор не меняется
	assert.JSONEq(t, `"dev-1"`, string(base[AttrDeviceID]))
}

func TestAttributes_DecodeNullIsAbsent(t *testing.T) {
	attrs := Attributes{AttrTokens: json.RawMessage("null")}

	var tokens Tokens
	ok, err := attrs.Decode(AttrTokens, &tokens)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = attrs.Decode("missing", &tokens)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAttributes_DecodeInvalid(t *testing.T) {
	attrs := Attributes{AttrRefreshAt: json.RawMessage(`"not a number"`)}

	var ms int64
	_, err := attrs.Decode(AttrRefreshAt, &ms)
	require.Error(t, err)
}

func TestUser_LinkedState(t *testing.T) {
	u := NewUser(42, nil)
	assert.False(t, u.IsLinked())
	assert.Nil(t, u.RefreshAt())
	assert.Empty(t, u.DeviceID())
	assert.Empty(t, u.AccessToken())

	at := time.UnixMilli(1_700_000_000_000)
	require.NoError(t, u.Attrs.Set(AttrDeviceID, "dev"))
	require.NoError(t, u.Attrs.Set(AttrTokens, Tokens{AccessToken: "a", RefreshToken: "r", ExpiresIn: 3600, TokenType: "bearer"}))
	require.NoError(t, u.Attrs.Set(AttrRefreshAt, at.UnixMilli()))

	assert.True(t, u.IsLinked())
	assert.Equal(t, "dev", u.DeviceID())
	assert.Equal(t, "a", u.AccessToken())
	require.NotNil(t, u.RefreshAt())
	assert.True(t, at.Equal(*u.RefreshAt()))
}
