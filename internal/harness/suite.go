package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// DefaultSuiteParallelism bounds concurrent scenario executions in a
// suite run. Each scenario owns an in-memory database and a private
// loop, so runs never share state.
const DefaultSuiteParallelism = 4

// SuiteResult contains results from running a scenario suite.
type SuiteResult struct {
	TotalScenarios int               `json:"total_scenarios"`
	Passed         int               `json:"passed"`
	Failed         int               `json:"failed"`
	Failures       []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure represents a failed scenario in a suite run.
type ScenarioFailure struct {
	ScenarioPath string `json:"scenario_path"`
	Name         string `json:"name,omitempty"`
	Error        string `json:"error"`
}

// DiscoverScenarios finds scenario YAML files under dir, sorted by path
// for deterministic suite ordering.
func DiscoverScenarios(dir string) ([]string, error) {
	var paths []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to discover scenarios: %w", err)
	}

	sort.Strings(paths)
	return paths, nil
}

// RunSuite discovers and executes every scenario under dir.
//
// Scenarios run concurrently, bounded by parallel (zero or negative uses
// DefaultSuiteParallelism). The summary is deterministic regardless of
// completion order: results fold in discovery order.
//
// A scenario counts as failed when it cannot be loaded, its execution
// errors, or its assertions fail. RunSuite itself returns an error only
// when discovery fails or ctx is cancelled.
func RunSuite(ctx context.Context, dir string, parallel int) (*SuiteResult, error) {
	paths, err := DiscoverScenarios(dir)
	if err != nil {
		return nil, err
	}

	if parallel <= 0 {
		parallel = DefaultSuiteParallelism
	}

	type outcome struct {
		name    string
		failure string
	}

	outcomes := make([]outcome, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	for i, path := range paths {
		idx, scenarioPath := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			scenario, err := LoadScenarioWithBasePath(scenarioPath, filepath.Dir(scenarioPath))
			if err != nil {
				outcomes[idx] = outcome{failure: fmt.Sprintf("failed to load scenario: %v", err)}
				return nil
			}

			result, err := Run(scenario)
			if err != nil {
				outcomes[idx] = outcome{name: scenario.Name, failure: fmt.Sprintf("scenario execution failed: %v", err)}
				return nil
			}

			if !result.Pass {
				outcomes[idx] = outcome{name: scenario.Name, failure: fmt.Sprintf("scenario assertions failed: %v", result.Errors)}
				return nil
			}

			outcomes[idx] = outcome{name: scenario.Name}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	suite := &SuiteResult{TotalScenarios: len(paths)}
	for i, oc := range outcomes {
		if oc.failure == "" {
			suite.Passed++
			continue
		}
		suite.Failed++
		suite.Failures = append(suite.Failures, ScenarioFailure{
			ScenarioPath: paths[i],
			Name:         oc.name,
			Error:        oc.failure,
		})
	}

	return suite, nil
}
