package mailer

type Service interface {
	SendVerificationCode(toEmail, toName, code string) error
	SendInvitation(toEmail, businessName, code, joinURL string) error
}
