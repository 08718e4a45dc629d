package auth

import (
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// VerifyTOTP checks a 6-digit time-based code against the user's secret.
func VerifyTOTP(secret, code string) bool {
	if secret == "" || code == "" {
		return false
	}
	return totp.Validate(code, secret)
}

// GenerateTOTPSecret creates a new TOTP secret for the configure_otp
// required action. The returned key carries the otpauth:// provisioning
// URL for enrollment QR codes.
func GenerateTOTPSecret(issuer, accountName string) (*otp.Key, error) {
	return totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
	})
}
