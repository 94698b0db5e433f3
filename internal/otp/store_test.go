package otp_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/VanHoang0612/Mochi-Chat/internal/otp"
)

func TestGenerateCode(t *testing.T) {
	seen := map[string]int{}
	for i := 0; i < 200; i++ {
		code, err := otp.GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, otp.CodeLength)
		for _, r := range code {
			require.True(t, r >= '0' && r <= '9')
		}
		seen[code]++
	}
	// 200 draws from a million-value space should not all collide.
	require.Greater(t, len(seen), 150)
}

func TestResetKey(t *testing.T) {
	require.Equal(t, "resetToken:abc", otp.ResetKey("abc"))
}
