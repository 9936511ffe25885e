package mailer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/event-nexus-api/pkg/config"
)

func TestNewValidatesSenderWhenEnabled(t *testing.T) {
	_, err := New(config.MailConfig{Enabled: true, From: "not-an-address"}, nil)
	require.Error(t, err)

	m, err := New(config.MailConfig{Enabled: true, APIKey: "key", From: "Event Nexus <no-reply@eventnexus.io>"}, nil)
	require.NoError(t, err)
	require.NotNil(t, m)
}

func TestSendDisabledIsNoOp(t *testing.T) {
	m, err := New(config.MailConfig{Enabled: false}, nil)
	require.NoError(t, err)

	err = m.Send(context.Background(), "dana@example.com", "Hello", "Body", nil)
	assert.NoError(t, err, "disabled dispatch reports success without calling out")
}

func TestSendRejectsInvalidRecipient(t *testing.T) {
	m, err := New(config.MailConfig{Enabled: false}, nil)
	require.NoError(t, err)

	err = m.Send(context.Background(), "nope", "Hello", "Body", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid recipient address")
}
