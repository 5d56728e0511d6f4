package email

import (
	"context"
	"errors"
	"testing"

	"github.com/angelmondragon/studyhub-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/studyhub-backend/pkg/errors"
	"github.com/resend/resend-go/v2"
	"github.com/stretchr/testify/require"
)

type fakeEmails struct {
	last *resend.SendEmailRequest
	err  error
}

func (f *fakeEmails) SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error) {
	f.last = params
	if f.err != nil {
		return nil, f.err
	}
	return &resend.SendEmailResponse{Id: "msg_1"}, nil
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(config.EmailConfig{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConfiguration))
}

func TestSendPrefixesSubject(t *testing.T) {
	api := &fakeEmails{}
	client := newWithAPI(api, config.EmailConfig{From: "StudyHub <n@studyhub.app>", Subject: "[StudyHub]"})

	id, err := client.Send(context.Background(), Message{To: " a@b.edu ", Subject: "Exam moved", HTML: "<p>hi</p>"})
	require.NoError(t, err)
	require.Equal(t, "msg_1", id)
	require.Equal(t, []string{"a@b.edu"}, api.last.To)
	require.Equal(t, "[StudyHub] Exam moved", api.last.Subject)
	require.Equal(t, "StudyHub <n@studyhub.app>", api.last.From)
}

func TestSendWrapsUpstreamFailure(t *testing.T) {
	client := newWithAPI(&fakeEmails{err: errors.New("422")}, config.EmailConfig{})

	_, err := client.Send(context.Background(), Message{To: "a@b.edu", Subject: "x"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUpstream))

	_, err = client.Send(context.Background(), Message{To: "  "})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
