package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"(312) 555-0100":   "+13125550100",
		"312.555.0100":     "+13125550100",
		"1-312-555-0100":   "+13125550100",
		"+1 312 555 0100":  "+13125550100",
		"+44 20 7946 0958": "+442079460958",
	}
	for in, want := range cases {
		got, err := NormalizePhone(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "555-0100", "2-312-555-0100", "+1234"} {
		_, err := NormalizePhone(in)
		assert.Error(t, err, in)
	}
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("driver@example.com"))
	assert.Error(t, ValidateEmail(""))
	assert.Error(t, ValidateEmail("not-an-email"))
}

func TestValidateChatID(t *testing.T) {
	assert.NoError(t, ValidateChatID("123456789"))
	assert.NoError(t, ValidateChatID("-1001234567890"))
	assert.NoError(t, ValidateChatID("@fleet_alerts"))
	assert.Error(t, ValidateChatID(""))
	assert.Error(t, ValidateChatID("@"))
	assert.Error(t, ValidateChatID("12ab"))
}
