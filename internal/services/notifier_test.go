package services

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSESLockoutNotifier_SendsToAccountEmail(t *testing.T) {
	var sent *ses.SendEmailInput
	client := &MockSESClient{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			sent = params
			return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
		},
	}
	notifier := NewSESLockoutNotifierWithClient(client, "no-reply@hopital.fr", discardLogger())

	err := notifier.NotifyAccountLocked(context.Background(), NewTestUser(t, 42, "jdupont", "Secret#1"))
	require.NoError(t, err)

	require.NotNil(t, sent)
	assert.Equal(t, "no-reply@hopital.fr", aws.ToString(sent.Source))
	assert.Equal(t, []string{"jdupont@hopital.fr"}, sent.Destination.ToAddresses)
	assert.Contains(t, aws.ToString(sent.Message.Body.Text.Data), "jdupont")
}

func TestSESLockoutNotifier_PropagatesError(t *testing.T) {
	client := &MockSESClient{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			return nil, errors.New("throttled")
		},
	}
	notifier := NewSESLockoutNotifierWithClient(client, "no-reply@hopital.fr", discardLogger())

	err := notifier.NotifyAccountLocked(context.Background(), NewTestUser(t, 42, "jdupont", "Secret#1"))
	assert.ErrorContains(t, err, "throttled")
}

func TestSESLockoutNotifier_SkipsMissingEmail(t *testing.T) {
	called := false
	client := &MockSESClient{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			called = true
			return &ses.SendEmailOutput{}, nil
		},
	}
	notifier := NewSESLockoutNotifierWithClient(client, "no-reply@hopital.fr", discardLogger())

	user := NewTestUser(t, 42, "jdupont", "Secret#1")
	user.Email = ""
	require.NoError(t, notifier.NotifyAccountLocked(context.Background(), user))
	assert.False(t, called)
}
