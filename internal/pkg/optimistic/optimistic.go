// Package optimistic applies a local state change before it is persisted and
// undoes it when persisting fails.
package optimistic

import "context"

type Command struct {
	Apply      func()
	Persist    func(ctx context.Context) error
	Compensate func()
	// Accept reports persistence errors that still count as success.
	Accept func(err error) bool
}

// Run applies the command, persists it and compensates on failure. The
// persistence error is returned unchanged.
func Run(ctx context.Context, cmd Command) error {
	if cmd.Apply != nil {
		cmd.Apply()
	}
	if cmd.Persist == nil {
		return nil
	}

	err := cmd.Persist(ctx)
	if err == nil || (cmd.Accept != nil && cmd.Accept(err)) {
		return nil
	}
	if cmd.Compensate != nil {
		cmd.Compensate()
	}
	return err
}
