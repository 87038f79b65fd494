package emailsvc

import (
	"io/ioutil"
	"log"
	"net/http"
	"net/mail"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rollcall/rollcall/core"
	logsvc "github.com/rollcall/rollcall/services/logger"
)

type fakeClient struct {
	res  *rest.Response
	err  error
	sent []*sgmail.SGMailV3
}

func (c *fakeClient) Send(email *sgmail.SGMailV3) (*rest.Response, error) {
	c.sent = append(c.sent, email)
	return c.res, c.err
}

func newTestSendgrid(client sgClient) *sendgridService {
	conf := core.NewTestConfig()
	return newSendgridService(client, conf, logsvc.NewRollbarLogger(log.New(ioutil.Discard, "", 0), conf))
}

func reportMessage(t *testing.T) *core.EmailMessage {
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: "Grace Hopper", Address: "grace@example.com"}},
		Bcc:          []mail.Address{{Address: "office@example.com"}},
		Subject:      "Attendance for Mathematics",
		BodyStr:      "2 of 3 students present",
		TemplateName: "attendance_report",
	}
	require.NoError(t, msg.Attach(strings.NewReader("student_id,present\nS-001,true\n"), "attendance.csv", "text/csv"))
	return msg
}

func Test_sendgridService_build(t *testing.T) {
	svc := newTestSendgrid(&fakeClient{})
	msg := reportMessage(t)
	require.NoError(t, msg.Render("Rollcall"))

	m := svc.build(*msg)
	assert.Equal(t, "noreply@localhost", m.From.Address)
	assert.Equal(t, "Rollcall", m.From.Name)
	assert.Equal(t, "[Rollcall] Attendance for Mathematics", m.Subject)
	assert.Equal(t, []string{"rollcall", "attendance_report"}, m.Categories)

	require.Len(t, m.Personalizations, 1)
	p := m.Personalizations[0]
	require.Len(t, p.To, 1)
	assert.Equal(t, "grace@example.com", p.To[0].Address)
	assert.Empty(t, p.CC)
	require.Len(t, p.BCC, 1)
	assert.Equal(t, "office@example.com", p.BCC[0].Address)

	require.Len(t, m.Content, 1)
	assert.Equal(t, "text/plain", m.Content[0].Type)
	assert.Equal(t, "2 of 3 students present", m.Content[0].Value)

	require.Len(t, m.Attachments, 1)
	at := m.Attachments[0]
	assert.Equal(t, "attendance.csv", at.Filename)
	assert.Equal(t, "text/csv", at.Type)
	assert.Equal(t, "attachment", at.Disposition)
	assert.Equal(t, msg.Attachments[0].Content.String(), at.Content)
}

func Test_sendgridService_deliver(t *testing.T) {
	tests := []struct {
		name     string
		client   *fakeClient
		msg      func(t *testing.T) *core.EmailMessage
		wantSent int
		wantErr  string
	}{
		{
			name:     "accepted",
			client:   &fakeClient{res: &rest.Response{StatusCode: http.StatusAccepted}},
			msg:      reportMessage,
			wantSent: 1,
		},
		{
			name:   "no recipients",
			client: &fakeClient{res: &rest.Response{StatusCode: http.StatusAccepted}},
			msg: func(t *testing.T) *core.EmailMessage {
				msg := reportMessage(t)
				msg.To = nil
				return msg
			},
		},
		{
			name:     "rejected",
			client:   &fakeClient{res: &rest.Response{StatusCode: http.StatusUnauthorized, Body: `{"errors":[{"message":"bad key"}]}`}},
			msg:      reportMessage,
			wantSent: 1,
			wantErr:  "sendgrid status 401",
		},
		{
			name:     "unreachable",
			client:   &fakeClient{err: errors.New("dial tcp: i/o timeout")},
			msg:      reportMessage,
			wantSent: 1,
			wantErr:  "i/o timeout",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newTestSendgrid(tt.client).deliver(tt.msg(t))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Len(t, tt.client.sent, tt.wantSent)
		})
	}
}
