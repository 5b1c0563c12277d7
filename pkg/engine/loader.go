package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/wflow/pkg/domain"
)

// IsWorkflowFile reports whether name has a workflow definition extension.
func IsWorkflowFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// LoadWorkflowFile parses one workflow definition.
func LoadWorkflowFile(path string) (domain.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Workflow{}, domain.WrapError(domain.KindFileSystem, "read workflow", err)
	}
	var wf domain.Workflow
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return domain.Workflow{}, domain.WrapError(domain.KindSerialization, "parse workflow",
			fmt.Errorf("%s: %w", path, err))
	}
	if wf.Name == "" {
		return domain.Workflow{}, domain.ValidationError("workflow %s has no name", path)
	}
	return wf, nil
}

type discovered struct {
	workflow domain.Workflow
	path     string
}

// loadWorkflowDir reads every workflow file directly under dir, sorted by name.
// A missing directory holds no workflows.
func loadWorkflowDir(dir string) ([]discovered, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.WrapError(domain.KindFileSystem, "read workflows dir", err)
	}

	var found []discovered
	for _, entry := range entries {
		if entry.IsDir() || !IsWorkflowFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		wf, err := LoadWorkflowFile(path)
		if err != nil {
			return nil, err
		}
		found = append(found, discovered{workflow: wf, path: path})
	}
	slices.SortFunc(found, func(a, b discovered) int {
		return strings.Compare(a.workflow.Name, b.workflow.Name)
	})
	return found, nil
}

// LoadWorkflows returns the workflows under dir, sorted by name.
func LoadWorkflows(dir string) ([]domain.Workflow, error) {
	found, err := loadWorkflowDir(dir)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Workflow, len(found))
	for i, d := range found {
		out[i] = d.workflow
	}
	return out, nil
}

// countWorkflowFiles counts workflow files directly under dir.
func countWorkflowFiles(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, domain.WrapError(domain.KindFileSystem, "read workflows dir", err)
	}
	n := 0
	for _, entry := range entries {
		if !entry.IsDir() && IsWorkflowFile(entry.Name()) {
			n++
		}
	}
	return n, nil
}
