package steamid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wardenhq/warden/internal/steamid"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{name: "valid", id: "76561197960287930", wantErr: false},
		{name: "valid high account number", id: "76561199999999999", wantErr: false},
		{name: "empty", id: "", wantErr: true},
		{name: "too short", id: "7656119796028793", wantErr: true},
		{name: "too long", id: "765611979602879300", wantErr: true},
		{name: "non digit", id: "7656119796028793x", wantErr: true},
		{name: "wrong prefix", id: "12345678901234567", wantErr: true},
		{name: "embedded space", id: "76561197 60287930", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := steamid.Validate(tt.id)
			if tt.wantErr {
				require.ErrorIs(t, err, steamid.ErrInvalidGameID)
				return
			}

			assert.NoError(t, err)
		})
	}
}
