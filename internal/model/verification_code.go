package model

// VerificationCode is a pending registration waiting for its emailed code.
// Only the bcrypt hash of the code is stored.
type VerificationCode struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
	CodeHash     string `json:"code_hash"`
	Ctime        int64  `json:"ctime"`
	ExpiresAt    int64  `json:"expires_at"`
}

func (c *VerificationCode) Expired(now int64) bool {
	return now > c.ExpiresAt
}

func (c *VerificationCode) Pending() *PendingRegistration {
	return &PendingRegistration{
		Username:     c.Username,
		Email:        c.Email,
		PasswordHash: c.PasswordHash,
	}
}

// PendingRegistration is everything needed to create the account once the
// code is confirmed.
type PendingRegistration struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
}
