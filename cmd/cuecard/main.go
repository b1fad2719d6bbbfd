package main

import (
	"errors"
	"fmt"
	"os"

	"cuecard/internal/domain"
)

const (
	ExitSuccess = 0
	ExitError   = 1
	ExitConfig  = 2
)

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, domain.ErrConfiguration) {
			os.Exit(ExitConfig)
		}
		os.Exit(ExitError)
	}
}
