package passtoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_IssueAndParse(t *testing.T) {
	codec := New("qr_secret")
	expiresAt := time.Now().Add(3 * time.Hour)

	token, err := codec.Issue("PASS-1", expiresAt)
	require.NoError(t, err)

	passID, err := codec.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "PASS-1", passID)
}

func TestCodec_ExpiryBoundToPass(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := now
	codec := New("qr_secret", WithLeeway(time.Minute), WithClock(func() time.Time { return clock }))

	token, err := codec.Issue("PASS-1", now.Add(3*time.Hour))
	require.NoError(t, err)

	clock = now.Add(3*time.Hour + 30*time.Second)
	_, err = codec.Parse(token)
	assert.NoError(t, err, "within leeway")

	clock = now.Add(3*time.Hour + 2*time.Minute)
	passID, err := codec.Parse(token)
	assert.ErrorIs(t, err, ErrExpired)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	assert.Equal(t, "PASS-1", passID, "authentic expired token still names its pass")
}

func TestCodec_ExpiredForgeryYieldsNoPassID(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := now.Add(5 * time.Hour)
	codec := New("qr_secret", WithClock(func() time.Time { return clock }))

	forged, err := New("other_secret").Issue("PASS-1", now.Add(3*time.Hour))
	require.NoError(t, err)
	passID, err := codec.Parse(forged)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrExpired)
	assert.Empty(t, passID)

	wrongAudience, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		PassID: "PASS-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{"campus-pass:session"},
			ExpiresAt: jwt.NewNumericDate(now.Add(3 * time.Hour)),
		},
	}).SignedString([]byte("qr_secret"))
	require.NoError(t, err)
	passID, err = codec.Parse(wrongAudience)
	assert.NotErrorIs(t, err, ErrExpired)
	assert.Empty(t, passID)
}

func TestCodec_ParseRejects(t *testing.T) {
	codec := New("qr_secret")
	valid, err := codec.Issue("PASS-1", time.Now().Add(time.Hour))
	require.NoError(t, err)

	otherSecret, err := New("other_secret").Issue("PASS-1", time.Now().Add(time.Hour))
	require.NoError(t, err)

	sessionLike, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		PassID: "PASS-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{"campus-pass:session"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("qr_secret"))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		PassID:           "PASS-1",
		RegisteredClaims: jwt.RegisteredClaims{Audience: jwt.ClaimStrings{Audience}},
	}).SignedString([]byte("qr_secret"))
	require.NoError(t, err)

	noPassID, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{Audience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("qr_secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not-a-token"},
		{name: "tampered", token: valid + "x"},
		{name: "wrong secret", token: otherSecret},
		{name: "session audience", token: sessionLike},
		{name: "no expiry", token: noExpiry},
		{name: "no pass id", token: noPassID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			passID, err := codec.Parse(tt.token)
			assert.Error(t, err)
			assert.Empty(t, passID)
		})
	}
}

func TestCodec_IssueRequiresPassID(t *testing.T) {
	_, err := New("qr_secret").Issue("", time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, ErrNoPassID)
}
