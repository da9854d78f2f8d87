package stage

import (
	"fmt"
	"os"
	"strings"

	"revoice/internal/services"
)

// RequireFile verifies that an artifact produced by an earlier stage exists.
// On failure it returns a services.ErrValidation suitable for stage methods.
func RequireFile(stageName, operation, path string) error {
	if strings.TrimSpace(path) == "" {
		return services.Wrap(
			services.ErrValidation, stageName, operation,
			"required artifact path is empty; rerun the previous stage", nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		return services.Wrap(
			services.ErrValidation, stageName, operation,
			fmt.Sprintf("required artifact %s is missing; rerun the previous stage", path), err)
	}
	if info.IsDir() {
		return services.Wrap(
			services.ErrValidation, stageName, operation,
			fmt.Sprintf("required artifact %s is a directory", path), nil)
	}
	return nil
}
