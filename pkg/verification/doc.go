// Package verification decides what happens when a user asks for a code to
// be sent to an email address.
//
// For each user it tracks which email is claimed, how long that claim is
// locked against switching to another address, and when a code may next be
// resent. RequestVerification returns one of five decisions:
//
//	NEW_OTP_ISSUED       a new email was claimed and a code was sent
//	OTP_RESENT           the locked email got a fresh code
//	REJECTED_EMAIL_LOCK  a different email was requested while locked
//	REJECTED_COOLDOWN    the same email was requested too soon
//	SEND_FAILED          state was committed but delivery failed
//
// Usage:
//
//	repo := attempt.NewMemoryRepository()
//	codes := otpcode.NewGenerator(otpcode.NewMemoryStore())
//	svc := verification.NewVerificationService(repo, codes, mailer)
//
//	d, err := svc.RequestVerification(ctx, "user-1", "alice@gmail.com")
//	if err != nil {
//	    // errors.Is(err, verification.ErrStoreFailure)
//	}
//	switch d.Kind {
//	case verification.RejectedCooldown:
//	    fmt.Printf("retry in %ds\n", d.RetryAfterSeconds)
//	}
//
// State is read, checked and written in a single attempt.Repository Update,
// so concurrent requests for one user are serialized. Codes are generated and
// mailed only after that commit.
package verification
