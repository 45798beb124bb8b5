package publisher

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClassifyStatus(t *testing.T) {
	assert.ErrorIs(t, classifyStatus("x", 401, ""), ErrAuthExpired)
	assert.ErrorIs(t, classifyStatus("x", 429, ""), ErrTransient)
	assert.ErrorIs(t, classifyStatus("x", 503, ""), ErrTransient)

	err := classifyStatus("x", 400, "bad duration")
	var rejected *PlatformRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "x", rejected.Platform)
	assert.Contains(t, rejected.Reason, "bad duration")
}

func TestClassifyGraphErrorExpiredToken(t *testing.T) {
	body := []byte(`{"error":{"message":"Error validating access token","code":190}}`)
	assert.ErrorIs(t, classifyGraphError("instagram", 400, body), ErrAuthExpired)

	// Without the OAuth code a 400 stays a rejection.
	err := classifyGraphError("instagram", 400, []byte(`{"error":{"message":"bad","code":100}}`))
	var rejected *PlatformRejectedError
	assert.True(t, errors.As(err, &rejected))
}

func TestManagerRegistrationOrder(t *testing.T) {
	m := NewManager(zap.NewNop())

	require.NoError(t, m.Register(NewYouTubePublisher("id", "secret", "rt", zap.NewNop())))
	require.NoError(t, m.Register(NewFacebookPublisher("tok", "page", zap.NewNop())))

	enabled := m.Enabled()
	require.Len(t, enabled, 2)
	assert.Equal(t, "youtube", enabled[0].Name())
	assert.Equal(t, "facebook", enabled[1].Name())

	assert.Error(t, m.Register(NewYouTubePublisher("id", "secret", "rt", zap.NewNop())))
}
