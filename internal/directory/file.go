// ABOUTME: TOML-backed agent lister for local agent definitions
// ABOUTME: Parses an [[agents]] array and validates ids are present and unique

package directory

import (
	"context"
	"fmt"

	"github.com/BurntSushi/toml"
)

// FileLister reads agent definitions from a local TOML file with one
// [[agents]] table per agent. It re-reads the file on every call; callers
// wanting caching wrap it in a Directory.
type FileLister struct {
	Path string
}

type agentsFile struct {
	Agents []Agent `toml:"agents"`
}

// ListAgents parses the file and returns its agents.
func (f *FileLister) ListAgents(ctx context.Context) ([]Agent, error) {
	var parsed agentsFile
	if _, err := toml.DecodeFile(f.Path, &parsed); err != nil {
		return nil, fmt.Errorf("reading agents file %s: %w", f.Path, err)
	}

	seen := make(map[string]bool, len(parsed.Agents))
	for i, agent := range parsed.Agents {
		if agent.ID == "" {
			return nil, fmt.Errorf("agents file %s: entry %d has no id", f.Path, i)
		}
		if seen[agent.ID] {
			return nil, fmt.Errorf("agents file %s: duplicate agent id %q", f.Path, agent.ID)
		}
		seen[agent.ID] = true
	}
	return parsed.Agents, nil
}
