package handlebars

import (
	"os"
	"testing"

	"gopkg.in/yaml.v3"
)

type fixture struct {
	Name     string            `yaml:"name"`
	Template string            `yaml:"template"`
	Data     any               `yaml:"data"`
	Partials map[string]string `yaml:"partials"`
	Expected string            `yaml:"expected"`
}

func loadFixtures(t *testing.T, path string) []fixture {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixtures: %v", err)
	}
	var cases []fixture
	if err := yaml.Unmarshal(raw, &cases); err != nil {
		t.Fatalf("decode fixtures: %v", err)
	}
	if len(cases) == 0 {
		t.Fatalf("no fixtures in %s", path)
	}
	return cases
}

func TestRenderFixtures(t *testing.T) {
	for _, tc := range loadFixtures(t, "testdata/render.yml") {
		t.Run(tc.Name, func(t *testing.T) {
			e := mustEngine(t, WithPartialAliases(tc.Partials))
			got, err := e.RenderString(tc.Template, tc.Data)
			if err != nil {
				t.Fatalf("render error: %v", err)
			}
			if got != tc.Expected {
				t.Fatalf("got %q, want %q", got, tc.Expected)
			}
		})
	}
}
