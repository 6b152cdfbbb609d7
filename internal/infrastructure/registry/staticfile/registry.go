// Package staticfile serves the workspace catalog from a YAML file, for
// deployments that run without Postgres. The file is read once at startup;
// upserts merge into process memory and are lost on restart.
package staticfile

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/knowledge-gateway/internal/core/domain"
	"github.com/kirillkom/knowledge-gateway/internal/core/ports"
)

// Compile-time check: Registry implements ports.WorkspaceRegistry.
var _ ports.WorkspaceRegistry = (*Registry)(nil)

type workspaceEntry struct {
	Slug     string   `yaml:"slug"`
	Name     string   `yaml:"name"`
	TechTags []string `yaml:"tech_tags"`
}

type workspaceFile struct {
	Workspaces []workspaceEntry `yaml:"workspaces"`
}

type Registry struct {
	mu         sync.RWMutex
	workspaces map[string]domain.WorkspaceDescriptor
}

func New(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workspace file %s: %w", path, err)
	}

	var file workspaceFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse workspace file %s: %w", path, err)
	}

	workspaces := make(map[string]domain.WorkspaceDescriptor, len(file.Workspaces))
	for _, entry := range file.Workspaces {
		if entry.Slug == "" {
			return nil, fmt.Errorf("workspace file %s: entry without slug", path)
		}
		name := entry.Name
		if name == "" {
			name = entry.Slug
		}
		workspaces[entry.Slug] = domain.WorkspaceDescriptor{
			Slug:     entry.Slug,
			Name:     name,
			TechTags: entry.TechTags,
		}
	}
	return &Registry{workspaces: workspaces}, nil
}

func (r *Registry) ListWorkspaces(_ context.Context) ([]domain.WorkspaceDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.WorkspaceDescriptor, 0, len(r.workspaces))
	for _, ws := range r.workspaces {
		out = append(out, ws)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (r *Registry) UpsertWorkspace(_ context.Context, ws domain.WorkspaceDescriptor) error {
	if ws.Slug == "" {
		return fmt.Errorf("upsert workspace: empty slug")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.workspaces[ws.Slug]
	if !ok {
		name := ws.Name
		if name == "" {
			name = ws.Slug
		}
		r.workspaces[ws.Slug] = domain.WorkspaceDescriptor{
			Slug:     ws.Slug,
			Name:     name,
			TechTags: append([]string(nil), ws.TechTags...),
		}
		return nil
	}

	if ws.Name != "" {
		current.Name = ws.Name
	}
	current.TechTags = mergeTags(current.TechTags, ws.TechTags)
	r.workspaces[ws.Slug] = current
	return nil
}

func mergeTags(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing))
	out := append([]string(nil), existing...)
	for _, tag := range existing {
		seen[tag] = true
	}
	for _, tag := range incoming {
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
