package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCredential(t *testing.T) {
	c, err := ParseCredential("0xabc:c2ln:hello world:bm9uY2U")
	require.NoError(t, err)
	require.Equal(t, "0xabc", c.Address)
	require.Equal(t, "c2ln", c.Signature)
	require.Equal(t, "hello world", c.Message)
	require.Equal(t, "bm9uY2U", c.Nonce)
}

func TestParseCredentialMessageMayContainColons(t *testing.T) {
	c, err := ParseCredential("0xabc:c2ln:Authenticate: sign in at 12:30:bm9uY2U")
	require.NoError(t, err)
	require.Equal(t, "Authenticate: sign in at 12:30", c.Message)
	require.Equal(t, "bm9uY2U", c.Nonce)
}

func TestParseCredentialRoundTrip(t *testing.T) {
	in := Credential{Address: "0xabc", Signature: "c2ln", Message: "msg: with colon", Nonce: "n1"}
	out, err := ParseCredential(in.String())
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestParseCredentialMalformed(t *testing.T) {
	for _, tok := range []string{
		"",
		"nocolons",
		"a:b",
		"a:b:c",    // nonce delimiter doubles as message delimiter
		"a::msg:n", // empty signature
		":b:msg:n", // empty address
		"a:b::n",   // empty message
		"a:b:msg:", // empty nonce
	} {
		_, err := ParseCredential(tok)
		require.Error(t, err, "token %q", tok)
	}
}
