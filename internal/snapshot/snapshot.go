// Package snapshot loads a portfolio snapshot from disk. Snapshots may be
// written as TOML, YAML, or JSON; all three share one schema and decode
// into the read-only model types.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/papapumpkin/loadstar/internal/model"
)

// ErrUnknownFormat is returned when a file extension maps to no decoder.
var ErrUnknownFormat = errors.New("unknown snapshot format")

// Format is a snapshot encoding.
type Format int

// Supported formats.
const (
	FormatTOML Format = iota
	FormatYAML
	FormatJSON
)

// String returns the format's conventional name.
func (f Format) String() string {
	switch f {
	case FormatTOML:
		return "toml"
	case FormatYAML:
		return "yaml"
	case FormatJSON:
		return "json"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// FormatFromPath picks a format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}

// Result is a decoded snapshot plus the soft problems found while
// converting it.
type Result struct {
	Snapshot model.Snapshot
	Warnings []model.Warning
}

type fileTask struct {
	ID           string   `toml:"id" yaml:"id" json:"id"`
	Name         string   `toml:"name" yaml:"name" json:"name"`
	Start        string   `toml:"start" yaml:"start" json:"start"`
	End          string   `toml:"end" yaml:"end" json:"end"`
	Dependencies []string `toml:"dependencies" yaml:"dependencies" json:"dependencies"`
	Type         string   `toml:"type" yaml:"type" json:"type"`
	Project      string   `toml:"project" yaml:"project" json:"project"`
	Progress     int      `toml:"progress" yaml:"progress" json:"progress"`
}

type fileRequirement struct {
	Resource string  `toml:"resource" yaml:"resource" json:"resource"`
	Count    float64 `toml:"count" yaml:"count" json:"count"`
	Duration float64 `toml:"duration" yaml:"duration" json:"duration"`
	Unit     string  `toml:"unit" yaml:"unit" json:"unit"`
}

type fileProject struct {
	ID           string            `toml:"id" yaml:"id" json:"id"`
	Name         string            `toml:"name" yaml:"name" json:"name"`
	Status       string            `toml:"status" yaml:"status" json:"status"`
	Start        string            `toml:"start" yaml:"start" json:"start"`
	End          string            `toml:"end" yaml:"end" json:"end"`
	Requirements []fileRequirement `toml:"requirements" yaml:"requirements" json:"requirements"`
}

type fileResource struct {
	ID       string   `toml:"id" yaml:"id" json:"id"`
	Name     string   `toml:"name" yaml:"name" json:"name"`
	Quantity float64  `toml:"quantity" yaml:"quantity" json:"quantity"`
	Members  []string `toml:"members" yaml:"members" json:"members"`
}

type file struct {
	Tasks     []fileTask     `toml:"tasks" yaml:"tasks" json:"tasks"`
	Projects  []fileProject  `toml:"projects" yaml:"projects" json:"projects"`
	Resources []fileResource `toml:"resources" yaml:"resources" json:"resources"`
}

// Load reads and decodes the snapshot at path.
func Load(path string) (*Result, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	res, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return res, nil
}

// Parse decodes data in the given format. Unknown enum values are hard
// errors. A malformed date is left unset with an InvalidDateRange warning,
// which keeps the entity out of date-based work; out-of-range progress is
// clamped with a warning.
func Parse(data []byte, format Format) (*Result, error) {
	var f file
	if err := decode(data, format, &f); err != nil {
		return nil, err
	}

	var ws model.Warnings
	snap := model.Snapshot{
		Tasks:     make([]model.Task, 0, len(f.Tasks)),
		Projects:  make([]model.Project, 0, len(f.Projects)),
		Resources: make([]model.ResourcePoolItem, 0, len(f.Resources)),
	}
	for _, ft := range f.Tasks {
		t, err := convertTask(ft, &ws)
		if err != nil {
			return nil, err
		}
		snap.Tasks = append(snap.Tasks, t)
	}
	for _, fp := range f.Projects {
		p, err := convertProject(fp, &ws)
		if err != nil {
			return nil, err
		}
		snap.Projects = append(snap.Projects, p)
	}
	for _, fr := range f.Resources {
		if fr.ID == "" {
			return nil, errors.New("resource with empty id")
		}
		snap.Resources = append(snap.Resources, model.ResourcePoolItem{
			ID:            fr.ID,
			Name:          fr.Name,
			TotalQuantity: fr.Quantity,
			Members:       fr.Members,
		})
	}
	return &Result{Snapshot: snap, Warnings: ws.List()}, nil
}

func decode(data []byte, format Format, f *file) error {
	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(data, f); err != nil {
			return fmt.Errorf("parsing TOML: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, f); err != nil {
			return fmt.Errorf("parsing YAML: %w", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, f); err != nil {
			return fmt.Errorf("parsing JSON: %w", err)
		}
	default:
		return fmt.Errorf("%w: %v", ErrUnknownFormat, format)
	}
	return nil
}

func convertTask(ft fileTask, ws *model.Warnings) (model.Task, error) {
	if ft.ID == "" {
		return model.Task{}, errors.New("task with empty id")
	}
	typ, err := model.ParseTaskType(ft.Type)
	if err != nil {
		return model.Task{}, fmt.Errorf("task %q: %w", ft.ID, err)
	}
	start, end := parseRange(ft.ID, ft.Start, ft.End, ws)
	progress := ft.Progress
	if progress < 0 || progress > 100 {
		progress = min(max(progress, 0), 100)
		ws.Add(model.ClampedValue, ft.ID, "", "progress %d clamped to %d", ft.Progress, progress)
	}
	return model.Task{
		ID:           ft.ID,
		Name:         ft.Name,
		Start:        start,
		End:          end,
		Dependencies: ft.Dependencies,
		Type:         typ,
		ProjectID:    ft.Project,
		Progress:     progress,
	}, nil
}

func convertProject(fp fileProject, ws *model.Warnings) (model.Project, error) {
	if fp.ID == "" {
		return model.Project{}, errors.New("project with empty id")
	}
	status, err := model.ParseProjectStatus(fp.Status)
	if err != nil {
		return model.Project{}, fmt.Errorf("project %q: %w", fp.ID, err)
	}
	start, end := parseRange(fp.ID, fp.Start, fp.End, ws)
	reqs := make([]model.ResourceRequirement, 0, len(fp.Requirements))
	for _, fr := range fp.Requirements {
		unit, err := model.ParseDurationUnit(fr.Unit)
		if err != nil {
			return model.Project{}, fmt.Errorf("project %q requirement %q: %w", fp.ID, fr.Resource, err)
		}
		reqs = append(reqs, model.ResourceRequirement{
			ResourceID: fr.Resource,
			Count:      fr.Count,
			Duration:   fr.Duration,
			Unit:       unit,
		})
	}
	return model.Project{
		ID:           fp.ID,
		Name:         fp.Name,
		Status:       status,
		Start:        start,
		End:          end,
		Requirements: reqs,
	}, nil
}

// parseRange parses an entity's start and end. A date that does not parse
// stays zero and is reported against subject.
func parseRange(subject, startStr, endStr string, ws *model.Warnings) (start, end model.Date) {
	return parseDate(subject, startStr, ws), parseDate(subject, endStr, ws)
}

func parseDate(subject, s string, ws *model.Warnings) model.Date {
	d, err := model.ParseDate(s)
	if err != nil {
		ws.Add(model.InvalidDateRange, subject, s, "%v", err)
		return model.Date{}
	}
	return d
}
