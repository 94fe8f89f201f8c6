package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	qrterminal "github.com/mdp/qrterminal/v3"
)

type qrCommand struct {
	Args struct {
		Ref string `positional-arg-name:"ref" description:"Pairing ref issued by the server"`
	} `positional-args:"yes" required:"yes"`
}

// Execute renders the pairing QR payload: the server ref joined with the
// session's noise public key, identity public key and adv secret.
func (cmd *qrCommand) Execute(args []string) error {
	ctx := context.Background()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	c := s.Creds()
	payload := strings.Join([]string{
		cmd.Args.Ref,
		base64.StdEncoding.EncodeToString(c.NoiseKey.Public),
		base64.StdEncoding.EncodeToString(c.SignedIdentityKey.Public),
		c.AdvSecretKey,
	}, ",")

	fmt.Println("Scan this QR code with the phone:")
	fmt.Println("  Settings → Linked Devices → Link a Device")
	fmt.Println()

	qrterminal.GenerateWithConfig(payload, qrterminal.Config{
		Level:     qrterminal.L,
		Writer:    os.Stdout,
		BlackChar: qrterminal.BLACK,
		WhiteChar: qrterminal.WHITE,
	})
	return nil
}
