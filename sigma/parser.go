package sigma

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Parser handles parsing SIGMA YAML files.
type Parser struct {
	logger *zap.SugaredLogger
}

// NewParser creates a new SIGMA parser.
func NewParser(logger *zap.SugaredLogger) *Parser {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Parser{logger: logger}
}

// ParseDirectory parses all SIGMA YAML files under a directory. Individual
// file failures are logged and skipped so one bad rule does not abort a bulk
// import.
func (p *Parser) ParseDirectory(directory string) ([]*Rule, error) {
	var rules []*Rule

	err := filepath.Walk(directory, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yml" && ext != ".yaml" {
			return nil
		}

		rule, err := p.ParseFile(path)
		if err != nil {
			p.logger.Warnw("Skipping unparseable rule file",
				"path", path,
				"error", err)
			return nil
		}
		rules = append(rules, rule)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	return rules, nil
}

// ParseFile parses a single SIGMA YAML file.
func (p *Parser) ParseFile(filePath string) (*Rule, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	rule, err := p.ParseYAML(data)
	if err != nil {
		return nil, err
	}
	rule.FilePath = filePath
	return rule, nil
}

// ParseYAML parses a SIGMA rule from YAML bytes.
func (p *Parser) ParseYAML(data []byte) (*Rule, error) {
	var rule Rule
	if err := yaml.Unmarshal(data, &rule); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	rule.RawYAML = string(data)

	if err := rule.Validate(); err != nil {
		return nil, fmt.Errorf("invalid SIGMA rule: %w", err)
	}
	return &rule, nil
}
