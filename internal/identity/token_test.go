package identity_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinepass/booking-client/internal/identity"
)

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	token, exp, err := identity.NewAccessToken("secret", "u-demo", 15*time.Minute)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), exp, 5*time.Second)

	sub, err := identity.Verify("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "u-demo", sub)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, _, err := identity.NewAccessToken("secret", "u-demo", 15*time.Minute)
	require.NoError(t, err)

	_, err = identity.Verify("other-secret", token)
	assert.ErrorIs(t, err, identity.ErrInvalidToken)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	token, _, err := identity.NewAccessToken("secret", "u-demo", -time.Minute)
	require.NoError(t, err)

	_, err = identity.Verify("secret", token)
	assert.ErrorIs(t, err, identity.ErrInvalidToken)
}

func TestSubjectReadsWithoutSecret(t *testing.T) {
	token, _, err := identity.NewAccessToken("someone-elses-secret", "u-42", time.Minute)
	require.NoError(t, err)

	sub, err := identity.Subject(token)
	require.NoError(t, err)
	assert.Equal(t, "u-42", sub)
}

func TestSubjectRejectsGarbage(t *testing.T) {
	_, err := identity.Subject("not-a-jwt")
	assert.ErrorIs(t, err, identity.ErrInvalidToken)
}
