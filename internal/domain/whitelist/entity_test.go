// internal/domain/whitelist/entity_test.go
package whitelist

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_Valid(t *testing.T) {
	assert.True(t, StatusNotMinted.Valid())
	assert.True(t, StatusMinting.Valid())
	assert.True(t, StatusMinted.Valid())
	assert.False(t, Status("pending").Valid())
	assert.False(t, Status("").Valid())
}

func TestEntry_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusNotMinted, StatusMinting, true},
		{StatusMinting, StatusMinted, true},
		{StatusMinting, StatusNotMinted, true},

		// 直接ミント済みへは飛べない。minted からはどこへも戻れない。
		{StatusNotMinted, StatusMinted, false},
		{StatusMinted, StatusNotMinted, false},
		{StatusMinted, StatusMinting, false},
		{StatusNotMinted, StatusNotMinted, false},
	}

	for _, tt := range tests {
		e := Entry{Status: tt.from}
		assert.Equal(t, tt.want, e.CanTransitionTo(tt.to), "%s → %s", tt.from, tt.to)
	}
}

func TestEntry_Validate(t *testing.T) {
	ok := Entry{Address: "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU", Status: StatusNotMinted}
	assert.NoError(t, ok.Validate())

	noAddr := Entry{Status: StatusNotMinted}
	assert.ErrorIs(t, noAddr.Validate(), ErrInvalidAddress)

	badStatus := Entry{Address: "addr", Status: Status("weird")}
	assert.ErrorIs(t, badStatus.Validate(), ErrInvalidStatus)
}
