package mail

import "fmt"

// accountVerificationMail builds the account verification message parts.
func accountVerificationMail(to, code string) (subject, text, html string) {
	subject = "Verify Your Account - OTP Inside"
	text = fmt.Sprintf(`Welcome to Lekha!

Your OTP for account verification is: %s

If you didn't request this, simply ignore this mail.`, code)
	html = fmt.Sprintf(`
    <p>Welcome to <strong>Lekha</strong> 🚀</p>
    <p>Your OTP for account (%s) verification is:</p>
    <h2 style="margin: 10px 0; font-size: 24px;">%s</h2>
    <p>If you didn't request this, please ignore this email.</p>
  `, to, code)
	return subject, text, html
}

// adminPinSetupMail builds the admin PIN setup message parts.
func adminPinSetupMail(to, code string) (subject, text, html string) {
	subject = "Admin PIN Setup - OTP Inside"
	text = fmt.Sprintf(`%s has requested to set up or reset Admin PIN.
The OTP for Admin PIN setup is: %s

If you didn't request this, simply ignore this mail.`, to, code)
	html = fmt.Sprintf(`
    <p>%s has requested to set up or reset <strong>Admin PIN</strong>.</p>
    <p>The OTP for Admin PIN setup is:</p>
    <h2 style="margin: 10px 0; font-size: 24px;">%s</h2>
    <p>If you didn't request this, please ignore this email.</p>
  `, to, code)
	return subject, text, html
}
