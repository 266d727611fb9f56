package storage

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// RecipeImagePrefix is the key prefix of every recipe image.
const RecipeImagePrefix = "uploads/recipe"

// NewRecipeImageKey returns a fresh key for a recipe image with the given
// extension (without the dot). The client filename never influences it.
//
// Example:
//
//	ext: "png"
//	result: "uploads/recipe/9b2f4c1e-5d0a-4f7e-8a51-0c3e2d1b6a44.png"
func NewRecipeImageKey(ext string) string {
	return path.Join(RecipeImagePrefix, fmt.Sprintf("%s.%s", uuid.New().String(), ext))
}

// ValidateKey rejects keys that are empty, absolute, or contain "." / ".."
// segments or backslashes.
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}

// ComputePath maps a validated key to a path under basePath.
//
// Example:
//
//	basePath: "/data/media"
//	key: "uploads/recipe/abc.png"
//	result: "/data/media/uploads/recipe/abc.png"
func ComputePath(basePath, key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(basePath, filepath.FromSlash(key)), nil
}
