package scorer

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed heuristics.yaml
var heuristicsYAML []byte

type keywordTables struct {
	Frameworks      []string `yaml:"frameworks"`
	Animations      []string `yaml:"animations"`
	FontServices    []string `yaml:"font_services"`
	DefaultFonts    []string `yaml:"default_fonts"`
	Social          []string `yaml:"social"`
	Video           []string `yaml:"video"`
	Maps            []string `yaml:"maps"`
	ImageExtensions []string `yaml:"image_extensions"`
}

var keywords = mustLoadKeywords(heuristicsYAML)

func loadKeywords(data []byte) (keywordTables, error) {
	var k keywordTables
	if err := yaml.Unmarshal(data, &k); err != nil {
		return k, fmt.Errorf("parse heuristics: %w", err)
	}
	if len(k.Frameworks) == 0 || len(k.ImageExtensions) == 0 {
		return k, fmt.Errorf("parse heuristics: framework and image extension tables are required")
	}
	return k, nil
}

func mustLoadKeywords(data []byte) keywordTables {
	k, err := loadKeywords(data)
	if err != nil {
		panic(err)
	}
	return k
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
