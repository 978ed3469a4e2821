package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
)

// loadEnvFiles loads the dotenv files in order. Missing files are skipped, and a variable that is already
// set, by the environment or by an earlier file, is kept.
func loadEnvFiles(files ...string) error {
	for _, file := range files {
		err := godotenv.Load(file)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			continue
		}

		return fmt.Errorf("load %s: %w", file, err)
	}

	return nil
}
