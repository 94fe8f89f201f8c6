package main

import (
	"context"
	"fmt"
)

type deleteCommand struct{}

func (cmd *deleteCommand) Execute(args []string) error {
	ctx := context.Background()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if s.ColdStart() {
		fmt.Printf("Session %s has no stored records\n", s.ID())
		return nil
	}

	if err := s.DeleteSession(ctx); err != nil {
		return err
	}
	fmt.Printf("Session %s deleted\n", s.ID())
	return nil
}
