package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "short", in: "abcd", want: SecretMask},
		{name: "regular", in: "EAAG-secret-1234", want: SecretMask + "1234"},
		{name: "five", in: "x9876", want: SecretMask + "9876"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaskSecret(tt.in)
			assert.Equal(t, tt.want, got)
			if tt.in != "" {
				assert.NotEqual(t, tt.in, got)
			}
		})
	}
}

func TestNewToken(t *testing.T) {
	a, err := NewToken(32)
	require.NoError(t, err)
	b, err := NewToken(32)
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)

	def, err := NewToken(0)
	require.NoError(t, err)
	assert.Len(t, def, 64)
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "551199990000", want: "+551199990000"},
		{in: "+55 (11) 99999-0000", want: "+5511999990000"},
		{in: "11999990000", want: "+5511999990000"},
		{in: "1199990000", want: "+551199990000"},
		{in: "011 99999-0000", want: "+5511999990000"},
		{in: "+1 (415) 555-0123", want: "+14155550123"},
		{in: "0014155550123", want: "+14155550123"},
		{in: "+44 20 7946 0958", want: "+442079460958"},
		{in: "", wantErr: true},
		{in: "12345", wantErr: true},
	}
	for _, tt := range tests {
		got, err := NormalizePhone(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
		assert.True(t, strings.HasPrefix(got, "+"))
	}
}

func TestNormalizeE164KeepsCountryCode(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "14155550123", want: "+14155550123"},
		{in: "4915123456789", want: "+4915123456789"},
		{in: "551199990000", want: "+551199990000"},
		{in: "+14155550123", want: "+14155550123"},
		{in: "12345", wantErr: true},
		{in: "1234567890123456", wantErr: true},
		{in: " ", wantErr: true},
	}
	for _, tt := range tests {
		got, err := NormalizeE164(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestWhatsAppRecipient(t *testing.T) {
	assert.Equal(t, "551199990000", WhatsAppRecipient("+551199990000"))
	assert.Equal(t, "551199990000", WhatsAppRecipient("551199990000"))
}
