// Package main is a development utility for generating the three HS256
// secrets the server requires (auth.session_secret, verification.token_secret,
// verification.cron_secret). It prints ready-to-export environment variable
// lines so a local environment can be seeded in one paste. Do not reuse
// generated values across environments.
package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
)

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		log.Fatal(err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

func main() {
	fmt.Printf("export UMS_AUTH_SESSION_SECRET=%s\n", randomSecret())
	fmt.Printf("export UMS_VERIFICATION_TOKEN_SECRET=%s\n", randomSecret())
	fmt.Printf("export UMS_VERIFICATION_CRON_SECRET=%s\n", randomSecret())
}
