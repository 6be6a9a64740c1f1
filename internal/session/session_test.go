package session

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRegistrar struct {
	registered []string
}

func (r *recordingRegistrar) RegisterSession(_ context.Context, sessionID string) error {
	r.registered = append(r.registered, sessionID)
	return nil
}

func TestStart_RegistersFreshUUID(t *testing.T) {
	reg := &recordingRegistrar{}

	s, err := Start(context.Background(), reg)
	require.NoError(t, err)

	_, err = uuid.Parse(s.ID)
	assert.NoError(t, err)
	assert.Equal(t, []string{s.ID}, reg.registered)
	assert.False(t, s.StartedAt.IsZero())
}

func TestStart_DistinctIDsPerProcessRun(t *testing.T) {
	reg := &recordingRegistrar{}

	a, err := Start(context.Background(), reg)
	require.NoError(t, err)
	b, err := Start(context.Background(), reg)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
}
