package core

import (
	"fmt"
	"strings"
)

// Credential is a one-shot signature credential. Clients submit it as a
// colon-delimited bearer token, `address:signature:message:nonce`; this is the
// wire format only — it is parsed into this struct at the HTTP boundary and
// the raw string never propagates further.
type Credential struct {
	Address   string
	Signature string
	Message   string
	Nonce     string
}

// ParseCredential splits the compound wire form. The message is an arbitrary
// application string and may itself contain colons; the address (hex) and
// signature (base64) cannot, and the nonce (base64url) is the final segment,
// so the split is unambiguous: two fields off the front, one off the back.
func ParseCredential(token string) (Credential, error) {
	first := strings.IndexByte(token, ':')
	if first < 0 {
		return Credential{}, fmt.Errorf("malformed credential: expected address:signature:message:nonce")
	}
	second := strings.IndexByte(token[first+1:], ':')
	if second < 0 {
		return Credential{}, fmt.Errorf("malformed credential: missing signature delimiter")
	}
	second += first + 1
	last := strings.LastIndexByte(token, ':')
	if last <= second {
		return Credential{}, fmt.Errorf("malformed credential: missing nonce delimiter")
	}

	c := Credential{
		Address:   token[:first],
		Signature: token[first+1 : second],
		Message:   token[second+1 : last],
		Nonce:     token[last+1:],
	}
	if c.Address == "" || c.Signature == "" || c.Message == "" || c.Nonce == "" {
		return Credential{}, fmt.Errorf("malformed credential: empty field")
	}
	return c, nil
}

// String renders the wire form. Used by clients and tests; the server only
// parses.
func (c Credential) String() string {
	return c.Address + ":" + c.Signature + ":" + c.Message + ":" + c.Nonce
}
