package main

import (
	"errors"
	"os"

	"github.com/manifoldco/promptui"
)

func promptConfirm(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
		Stdin:     os.Stdin,
		Stdout:    os.Stdout,
	}
	if _, err := prompt.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// promptOptional asks for free text; an empty answer is allowed.
func promptOptional(label string) (string, error) {
	prompt := promptui.Prompt{
		Label:  label,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
	}
	return prompt.Run()
}

func promptRequired(label string, mask bool) (string, error) {
	prompt := promptui.Prompt{
		Label: label,
		Validate: func(s string) error {
			if len(s) == 0 {
				return errors.New("you must enter something")
			}
			return nil
		},
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
	}
	if mask {
		prompt.Mask = '*'
	}
	return prompt.Run()
}
