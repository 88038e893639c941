package mailer

import (
	"fmt"

	"github.com/luminara-labs/bizhub/pkg/logger"
)

// DevMailer prints emails to the log instead of sending them.
type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) SendVerificationCode(toEmail, toName, code string) error {
	logger.Info("[DEV MAIL] Verification Code",
		"to", toEmail,
		"name", toName,
		"code", code,
	)

	fmt.Printf("\n"+
		"=================================================================\n"+
		"VERIFICATION EMAIL (DEV MODE)\n"+
		"=================================================================\n"+
		"To: %s (%s)\n"+
		"Subject: Your BizHub verification code\n"+
		"\n"+
		"Code: %s\n"+
		"=================================================================\n\n",
		toEmail, toName, code)

	return nil
}

func (d *DevMailer) SendInvitation(toEmail, businessName, code, joinURL string) error {
	logger.Info("[DEV MAIL] Invitation Email",
		"to", toEmail,
		"business", businessName,
		"code", code,
		"join_url", joinURL,
	)

	fmt.Printf("\n"+
		"=================================================================\n"+
		"INVITATION EMAIL (DEV MODE)\n"+
		"=================================================================\n"+
		"To: %s\n"+
		"Subject: You've been invited to join %s on BizHub\n"+
		"\n"+
		"Invitation Code: %s\n"+
		"Join URL: %s\n"+
		"=================================================================\n\n",
		toEmail, businessName, code, joinURL)

	return nil
}
