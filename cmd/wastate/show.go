package main

import (
	"context"
	"fmt"
)

type showCommand struct{}

func (cmd *showCommand) Execute(args []string) error {
	ctx := context.Background()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	c := s.Creds()
	state := "resumed"
	if s.ColdStart() {
		state = "cold start (not yet persisted, run 'wastate init')"
	}

	fmt.Printf("Session:          %s (%s)\n", s.ID(), state)
	fmt.Printf("Registered:       %v\n", c.Registered)
	fmt.Printf("Registration id:  %d\n", c.RegistrationID)
	fmt.Printf("Noise key:        %x\n", c.NoiseKey.Public[:8])
	fmt.Printf("Identity key:     %x\n", c.SignedIdentityKey.Public[:8])
	fmt.Printf("Signed prekey id: %d\n", c.SignedPreKey.KeyID)
	fmt.Printf("Phone id:         %s\n", c.PhoneID)
	fmt.Printf("Device id:        %s\n", c.DeviceID)
	fmt.Printf("Next prekey id:   %d\n", c.NextPreKeyID)
	return nil
}
