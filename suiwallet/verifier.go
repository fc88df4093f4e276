package suiwallet

import "context"

// Verifier adapts personal-message verification to the boolean contract the
// authentication protocol expects. Malformed signatures and signatures from a
// different address report false rather than an error: they are authentication
// failures, not system failures.
type Verifier struct{}

func (Verifier) Verify(ctx context.Context, message, signature, address string) (bool, error) {
	_ = ctx
	if err := ValidateAddress(address); err != nil {
		return false, nil
	}
	if err := VerifyPersonalMessage([]byte(message), signature, address); err != nil {
		return false, nil
	}
	return true, nil
}
