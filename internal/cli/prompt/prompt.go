// Package prompt provides interactive terminal prompts for vexfsctl's
// destructive-confirmation and credential-entry flows.
package prompt

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
)

// ErrAborted is returned when the user aborts a prompt (Ctrl+C).
var ErrAborted = errors.New("aborted")

func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, promptui.ErrInterrupt) {
		return ErrAborted
	}
	return err
}

// ConfirmDanger prompts for confirmation of a destructive operation by
// requiring the caller to type name back exactly.
func ConfirmDanger(label, name string) (bool, error) {
	p := promptui.Prompt{
		Label: fmt.Sprintf("%s (type %q to confirm)", label, name),
		Validate: func(input string) error {
			if input != name {
				return fmt.Errorf("type %q to confirm", name)
			}
			return nil
		},
	}
	result, err := p.Run()
	if err != nil {
		if err == promptui.ErrAbort {
			return false, nil
		}
		return false, wrapError(err)
	}
	return result == name, nil
}

// ConfirmWithForce returns true immediately if force is set, otherwise
// prompts the user to type name back before proceeding.
func ConfirmWithForce(label, name string, force bool) (bool, error) {
	if force {
		return true, nil
	}
	return ConfirmDanger(label, name)
}

// Password prompts for masked input, used for the admin passphrase
// when it isn't supplied on the command line.
func Password(label string) (string, error) {
	p := promptui.Prompt{Label: label, Mask: '*'}
	result, err := p.Run()
	return result, wrapError(err)
}
