// Package validator holds small checks that configuration types compose in
// their Validate methods.
package validator

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"
)

// All reports every failed check, or nil.
func All(errs ...error) error {
	return errors.Join(errs...)
}

type Validatable interface {
	Validate() error
}

func Each[T Validatable](items []T, description string) error {
	for i, item := range items {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("%s[%d]: %w", description, i, err)
		}
	}
	return nil
}

func Map[T any](items []T, f func(T, string) error, description string) error {
	for i, item := range items {
		if err := f(item, fmt.Sprintf("%s[%d]", description, i)); err != nil {
			return err
		}
	}
	return nil
}

// MapDict checks entries in key order so the first failure is stable.
func MapDict[T any](items map[string]T, f func(string, T, string) error, description string) error {
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := f(k, items[k], fmt.Sprintf("%s[%q]", description, k)); err != nil {
			return err
		}
	}
	return nil
}

func NotEmpty(field, description string) error {
	if strings.TrimSpace(field) == "" {
		return fmt.Errorf("%s must not be empty", description)
	}
	return nil
}

func NoDuplicates[T comparable](slice []T, description string) error {
	seen := make(map[T]struct{})
	for _, v := range slice {
		if _, ok := seen[v]; ok {
			return fmt.Errorf("%s contains duplicate value: %v", description, v)
		}
		seen[v] = struct{}{}
	}
	return nil
}

func MatchesAllowed[T comparable](field T, allowed []T, description string) error {
	if !slices.Contains(allowed, field) {
		return fmt.Errorf("%s must be one of %v, got %v", description, allowed, field)
	}
	return nil
}

// HasNoTags rejects values that contain either template delimiter, such as
// a partial name that would itself be read as a tag.
func HasNoTags(field, open, close, description string) error {
	if field != "" && (strings.Contains(field, open) || strings.Contains(field, close)) {
		return fmt.Errorf("%s must not contain template tags", description)
	}
	return nil
}

// IsDir requires path to name an existing directory.
func IsDir(path, description string) error {
	st, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%s: %w", description, err)
	}
	if !st.IsDir() {
		return fmt.Errorf("%s: %s is not a directory", description, path)
	}
	return nil
}
