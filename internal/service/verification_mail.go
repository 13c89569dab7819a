package service

import (
	"bytes"
	htmltpl "html/template"
	texttpl "text/template"
)

const verificationSubject = "Bar & Bartender - Email Verification Code"

type verificationMailData struct {
	Code    string
	Minutes int
}

var verificationText = texttpl.Must(texttpl.New("text").Parse(`Hello!

Thank you for registering with Bar & Bartender!

Your verification code is: {{.Code}}

This code will expire in {{.Minutes}} minutes.

If you did not request this code, please ignore this email.

Best regards,
Bar & Bartender Team
`))

var verificationHTML = htmltpl.Must(htmltpl.New("html").Parse(`<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #2c3e50;">Bar &amp; Bartender - Email Verification</h2>
        <p>Hello!</p>
        <p>Thank you for registering with Bar &amp; Bartender!</p>
        <div style="background-color: #f4f4f4; padding: 20px; text-align: center; margin: 20px 0; border-radius: 5px;">
            <p style="margin: 0; font-size: 14px; color: #666;">Your verification code is:</p>
            <h1 style="margin: 10px 0; font-size: 32px; color: #2c3e50; letter-spacing: 5px;">{{.Code}}</h1>
        </div>
        <p style="font-size: 12px; color: #999;">This code will expire in {{.Minutes}} minutes.</p>
        <p>If you did not request this code, please ignore this email.</p>
        <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
        <p style="font-size: 12px; color: #999;">Best regards,<br>Bar &amp; Bartender Team</p>
    </div>
</body>
</html>
`))

func renderVerificationMail(code string, minutes int) (string, string, error) {
	data := verificationMailData{Code: code, Minutes: minutes}
	var text, html bytes.Buffer
	if err := verificationText.Execute(&text, data); err != nil {
		return "", "", err
	}
	if err := verificationHTML.Execute(&html, data); err != nil {
		return "", "", err
	}
	return text.String(), html.String(), nil
}
