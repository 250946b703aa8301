package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"flat accessToken", `{"accessToken":"a1","token":"t1"}`, "a1", false},
		{"flat token", `{"token":"t1","expireAt":123}`, "t1", false},
		{"nested accessToken", `{"data":{"accessToken":"a2"}}`, "a2", false},
		{"nested token", `{"data":{"token":"t2"}}`, "t2", false},
		{"empty accessToken falls through", `{"accessToken":"  ","token":"t3"}`, "t3", false},
		{"non-string ignored", `{"token":42,"data":{"token":"t4"}}`, "t4", false},
		{"missing", `{"user":"ann"}`, "", true},
		{"not json", `ok`, "", true},
		{"empty", ``, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractToken(json.RawMessage(tt.raw))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrTokenNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpiry(t *testing.T) {
	exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)

	got, ok := Expiry(signedToken(t, exp))
	require.True(t, ok)
	assert.True(t, got.Equal(exp))

	_, ok = Expiry("opaque-session-token")
	assert.False(t, ok)
}

func TestFlexID(t *testing.T) {
	var u User
	require.NoError(t, json.Unmarshal([]byte(`{"id":1024,"username":"ann"}`), &u))
	assert.Equal(t, FlexID("1024"), u.ID)

	require.NoError(t, json.Unmarshal([]byte(`{"id":"u-7","username":"ann","nickname":"Annie"}`), &u))
	assert.Equal(t, FlexID("u-7"), u.ID)
	assert.Equal(t, "Annie", u.DisplayName())
}
