package flowmesh

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// credsUserJWTRe and credsSeedRe match the two PEM-style blocks a NATS-style
// credentials file bundles: a signed user JWT and the nkey seed that signs
// the CONNECT nonce. The block markers are fixed by the format, not
// configurable, so a regexp is the whole parser.
var (
	credsUserJWTRe = regexp.MustCompile(`(?s)-----BEGIN NATS USER JWT-----\r?\n(.+?)\r?\n-*END NATS USER JWT-*`)
	credsSeedRe    = regexp.MustCompile(`(?s)-----BEGIN USER NKEY SEED-----\r?\n(.+?)\r?\n-*END USER NKEY SEED-*`)
)

// parseCredentialsFile extracts the user JWT and nkey seed from a
// credentials file at path, for CONNECT auth via Auth.CredentialsFile.
func parseCredentialsFile(path string) (jwtStr, seed string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", wrapKind(KindAuth, fmt.Errorf("flowmesh: read credentials file: %w", err))
	}

	m := credsUserJWTRe.FindSubmatch(data)
	if m == nil {
		return "", "", wrapKind(KindAuth, fmt.Errorf("flowmesh: %s has no user JWT block", path))
	}
	jwtStr = strings.TrimSpace(string(m[1]))

	m = credsSeedRe.FindSubmatch(data)
	if m == nil {
		return "", "", wrapKind(KindAuth, fmt.Errorf("flowmesh: %s has no nkey seed block", path))
	}
	seed = strings.TrimSpace(string(m[1]))

	return jwtStr, seed, nil
}
