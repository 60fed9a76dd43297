package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexBoolUnmarshal(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		want    bool
		wantErr bool
	}{
		{"json true", `true`, true, false},
		{"json false", `false`, false, false},
		{"string true", `"true"`, true, false},
		{"string false", `"false"`, false, false},
		{"string one", `"1"`, true, false},
		{"string zero", `"0"`, false, false},
		{"number one", `1`, true, false},
		{"number zero", `0`, false, false},
		{"null", `null`, false, false},
		{"empty string", `""`, false, false},
		{"garbage string", `"yes please"`, false, true},
		{"other number", `2`, false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var b FlexBool
			err := json.Unmarshal([]byte(tc.input), &b)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, b.Bool())
		})
	}
}

func TestFlexBoolInsideStruct(t *testing.T) {
	var payload struct {
		Returnable FlexBool `json:"is_returnable"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"is_returnable": "true"}`), &payload))
	assert.True(t, payload.Returnable.Bool())

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"is_returnable": true}`, string(out))
}
