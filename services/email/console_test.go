package emailsvc_test

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-enrol/core"
	"github.com/trezcool/masomo-enrol/core/registration"
	appfs "github.com/trezcool/masomo-enrol/fs"
	emailsvc "github.com/trezcool/masomo-enrol/services/email"
	"github.com/trezcool/masomo-enrol/testutil"
)

func TestConsoleServiceMock(t *testing.T) {
	conf := testutil.NewConfig()
	logger := testutil.NewLogger()
	core.ParseEmailTemplates(appfs.FS, conf, logger)
	emailsvc.ResetSentMessages()
	t.Cleanup(emailsvc.ResetSentMessages)

	svc := emailsvc.NewConsoleServiceMock(conf, logger)
	to := []mail.Address{{Name: "Ann Lee", Address: "a@x.edu"}}
	svc.SendMessages(
		&core.EmailMessage{
			To:           to,
			Subject:      "Your account is ready",
			TemplateName: "welcome",
			TemplateData: registration.Profile{FirstName: "Ann", Email: "a@x.edu", Role: registration.RoleStudent},
		},
		&core.EmailMessage{To: to, Subject: "plain", BodyStr: "hello"},
		&core.EmailMessage{Subject: "no recipients", BodyStr: "dropped"},
		&core.EmailMessage{To: to, Subject: "unknown", TemplateName: "nope"},
	)

	require.Len(t, emailsvc.SentMessages, 2)
	welcome := emailsvc.SentMessages[0]
	assert.Contains(t, welcome.TextContent, "Hi Ann,")
	assert.Contains(t, welcome.TextContent, "Your student account on "+conf.AppName+" is ready")
	assert.Contains(t, welcome.HTMLContent, "Ann")
	assert.Equal(t, "hello", emailsvc.SentMessages[1].TextContent)
}
