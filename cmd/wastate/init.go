package main

import (
	"context"
	"fmt"
)

type initCommand struct{}

func (cmd *initCommand) Execute(args []string) error {
	ctx := context.Background()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if s.ColdStart() {
		if err := s.Save(ctx); err != nil {
			return err
		}
		fmt.Printf("Session %s created (registration id %d)\n", s.ID(), s.Creds().RegistrationID)
		return nil
	}

	fmt.Printf("Session %s already exists (registration id %d)\n", s.ID(), s.Creds().RegistrationID)
	return nil
}
