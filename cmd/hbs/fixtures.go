package main

import (
	"fmt"
	"maps"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// fixtureCase is one render expectation in a fixture file.
type fixtureCase struct {
	Name     string            `yaml:"name"`
	Template string            `yaml:"template"`
	Data     any               `yaml:"-"`
	Partials map[string]string `yaml:"partials"`
	Expected string            `yaml:"expected"`
	// Error, when set, is a substring the render error must contain.
	Error string `yaml:"error"`
}

var invalidNameChars = regexp.MustCompile(`[^a-z0-9-]+`)

func (f *fixtureCase) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: fixture must be a mapping", value.Line)
	}
	type alias fixtureCase
	var tmp alias
	if err := value.Decode(&tmp); err != nil {
		return err
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		if value.Content[i].Value == "data" {
			data, err := nodeValue(value.Content[i+1])
			if err != nil {
				return err
			}
			tmp.Data = data
		}
	}
	tmp.Name = strings.TrimSpace(tmp.Name)
	if tmp.Name == "" {
		tmp.Name = deriveFixtureName(tmp.Template)
	}
	*f = fixtureCase(tmp)
	return nil
}

func deriveFixtureName(tmpl string) string {
	name := strings.ToLower(strings.TrimSpace(tmpl))
	if len(name) > 32 {
		name = name[:32]
	}
	name = strings.Trim(invalidNameChars.ReplaceAllString(name, "-"), "-")
	if name == "" {
		name = "fixture"
	}
	return name
}

func loadFixtures(path string) ([]fixtureCase, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cases []fixtureCase
	if err := yaml.Unmarshal(raw, &cases); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return cases, nil
}

func normaliseFilters(filters []string) map[string]struct{} {
	if len(filters) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(filters))
	for _, f := range filters {
		for _, part := range strings.Split(f, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			out[strings.ToLower(part)] = struct{}{}
		}
	}
	return out
}

// check renders one case and describes how it failed, or returns "".
func (a *app) check(tc fixtureCase) (string, error) {
	engine, err := a.cfg.newEngine(a.logger)
	if err != nil {
		return "", err
	}
	for alias, target := range tc.Partials {
		engine.RegisterPartial(alias, target)
	}
	got, err := engine.RenderString(tc.Template, tc.Data)
	switch {
	case tc.Error != "" && err == nil:
		return fmt.Sprintf("expected error containing %q, rendered %q", tc.Error, got), nil
	case tc.Error != "" && !strings.Contains(err.Error(), tc.Error):
		return fmt.Sprintf("error %q does not contain %q", err, tc.Error), nil
	case tc.Error != "":
		return "", nil
	case err != nil:
		return fmt.Sprintf("render error: %v", err), nil
	case got != tc.Expected:
		return fmt.Sprintf("got %q, want %q", got, tc.Expected), nil
	}
	return "", nil
}

func (a *app) testCmd() *cobra.Command {
	var names []string
	cmd := &cobra.Command{
		Use:   "test [fixture.yml ...]",
		Short: "Run render fixtures and report mismatches",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filters := normaliseFilters(names)
			remaining := maps.Clone(filters)
			var passed, failed int
			out := cmd.OutOrStdout()
			for _, path := range args {
				cases, err := loadFixtures(path)
				if err != nil {
					return err
				}
				for _, tc := range cases {
					key := strings.ToLower(tc.Name)
					if filters != nil {
						if _, ok := filters[key]; !ok {
							continue
						}
						delete(remaining, key)
					}
					msg, err := a.check(tc)
					if err != nil {
						return err
					}
					if msg != "" {
						failed++
						fmt.Fprintf(out, "FAIL %s/%s: %s\n", path, tc.Name, msg)
						continue
					}
					passed++
					a.logger.Debug("fixture passed", "file", path, "name", tc.Name)
				}
			}
			if len(remaining) > 0 {
				missing := make([]string, 0, len(remaining))
				for k := range remaining {
					missing = append(missing, k)
				}
				sort.Strings(missing)
				return fmt.Errorf("no fixtures named %s", strings.Join(missing, ", "))
			}
			fmt.Fprintf(out, "%d passed, %d failed\n", passed, failed)
			if failed > 0 {
				return fmt.Errorf("%d fixture(s) failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&names, "tests", nil, "Run only the named fixtures")
	return cmd
}
