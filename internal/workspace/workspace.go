// Package workspace loads the workspace file that points the engine at its
// modules, scripts, graphs, and serving configuration.
//
// Workspace grammar:
//
//	modules_path = "modules"
//	scripts      = ["scripts/pipeline.js"]
//
//	graph "arith" {
//	  file = "graphs/arith.yaml"
//	}
//
//	schedule "nightly" {
//	  cron  = "0 3 * * *"
//	  graph = "arith"
//	}
//
//	serve {
//	  addr = ":8686"
//	}
//
//	archive {
//	  uri          = "neo4j://localhost:7687"
//	  username     = "neo4j"
//	  password_env = "FNGRAPH_NEO4J_PASSWORD"
//	  database     = "neo4j"
//	}
//
// Relative paths are resolved against the directory holding the workspace
// file. A workspace without modules_path runs script-only: no Go function
// packs are registered, so no pack manifests are needed.
package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/robfig/cron/v3"
	"github.com/zclconf/go-cty/cty"

	"github.com/csso/fngraph/internal/ctxlog"
)

// Graph names a graph document file.
type Graph struct {
	Name string
	File string
}

// Schedule runs a named graph on a cron expression.
type Schedule struct {
	Name  string
	Cron  string
	Graph string
}

// Serve configures the HTTP surface.
type Serve struct {
	Addr string
}

// Archive configures the shared graph store.
type Archive struct {
	URI      string
	Username string
	Password string
	Database string
}

// Config is a decoded workspace file.
type Config struct {
	Dir         string
	ModulesPath string
	Scripts     []string
	Graphs      []Graph
	Schedules   []Schedule
	Serve       *Serve
	Archive     *Archive
}

var workspaceSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "modules_path"},
		{Name: "scripts"},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "graph", LabelNames: []string{"name"}},
		{Type: "schedule", LabelNames: []string{"name"}},
		{Type: "serve"},
		{Type: "archive"},
	},
}

var graphBlockSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "file", Required: true},
	},
}

var scheduleBlockSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "cron", Required: true},
		{Name: "graph", Required: true},
	},
}

var serveBlockSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "addr"},
	},
}

var archiveBlockSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "uri", Required: true},
		{Name: "username"},
		{Name: "password"},
		{Name: "password_env"},
		{Name: "database"},
	},
}

// Load reads and validates a workspace file.
func Load(ctx context.Context, path string) (*Config, error) {
	logger := ctxlog.FromContext(ctx)

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workspace file: %w", err)
	}
	cfg, err := Parse(ctx, src, path)
	if err != nil {
		return nil, err
	}
	logger.Debug("Workspace loaded.", "path", path, "graphs", len(cfg.Graphs), "schedules", len(cfg.Schedules))
	return cfg, nil
}

// Parse decodes workspace source held in memory. Relative paths resolve
// against the directory part of filename.
func Parse(ctx context.Context, src []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse workspace %s: %w", filename, diags)
	}

	content, diags := file.Body.Content(workspaceSchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("workspace %s: %w", filename, diags)
	}

	cfg := &Config{Dir: filepath.Dir(filename)}

	if attr, ok := content.Attributes["modules_path"]; ok {
		s, err := stringAttr(attr)
		if err != nil {
			return nil, fmt.Errorf("workspace: modules_path: %w", err)
		}
		cfg.ModulesPath = s
	}
	if attr, ok := content.Attributes["scripts"]; ok {
		list, err := stringListAttr(attr)
		if err != nil {
			return nil, fmt.Errorf("workspace: scripts: %w", err)
		}
		cfg.Scripts = list
	}

	for _, block := range content.Blocks {
		switch block.Type {
		case "graph":
			g, err := decodeGraphBlock(block)
			if err != nil {
				return nil, err
			}
			cfg.Graphs = append(cfg.Graphs, g)
		case "schedule":
			s, err := decodeScheduleBlock(block)
			if err != nil {
				return nil, err
			}
			cfg.Schedules = append(cfg.Schedules, s)
		case "serve":
			s, err := decodeServeBlock(block)
			if err != nil {
				return nil, err
			}
			cfg.Serve = s
		case "archive":
			a, err := decodeArchiveBlock(block)
			if err != nil {
				return nil, err
			}
			cfg.Archive = a
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeGraphBlock(block *hcl.Block) (Graph, error) {
	name := block.Labels[0]
	content, diags := block.Body.Content(graphBlockSchema)
	if diags.HasErrors() {
		return Graph{}, fmt.Errorf("graph %q: %w", name, diags)
	}
	file, err := stringAttr(content.Attributes["file"])
	if err != nil {
		return Graph{}, fmt.Errorf("graph %q: file: %w", name, err)
	}
	return Graph{Name: name, File: file}, nil
}

func decodeScheduleBlock(block *hcl.Block) (Schedule, error) {
	name := block.Labels[0]
	content, diags := block.Body.Content(scheduleBlockSchema)
	if diags.HasErrors() {
		return Schedule{}, fmt.Errorf("schedule %q: %w", name, diags)
	}
	cronExpr, err := stringAttr(content.Attributes["cron"])
	if err != nil {
		return Schedule{}, fmt.Errorf("schedule %q: cron: %w", name, err)
	}
	graphName, err := stringAttr(content.Attributes["graph"])
	if err != nil {
		return Schedule{}, fmt.Errorf("schedule %q: graph: %w", name, err)
	}
	return Schedule{Name: name, Cron: cronExpr, Graph: graphName}, nil
}

func decodeServeBlock(block *hcl.Block) (*Serve, error) {
	content, diags := block.Body.Content(serveBlockSchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("serve block: %w", diags)
	}
	s := &Serve{}
	if attr, ok := content.Attributes["addr"]; ok {
		addr, err := stringAttr(attr)
		if err != nil {
			return nil, fmt.Errorf("serve block: addr: %w", err)
		}
		s.Addr = addr
	}
	return s, nil
}

func decodeArchiveBlock(block *hcl.Block) (*Archive, error) {
	content, diags := block.Body.Content(archiveBlockSchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("archive block: %w", diags)
	}

	a := &Archive{}
	read := func(name string) (string, error) {
		attr, ok := content.Attributes[name]
		if !ok {
			return "", nil
		}
		s, err := stringAttr(attr)
		if err != nil {
			return "", fmt.Errorf("archive block: %s: %w", name, err)
		}
		return s, nil
	}

	var err error
	if a.URI, err = read("uri"); err != nil {
		return nil, err
	}
	if a.Username, err = read("username"); err != nil {
		return nil, err
	}
	if a.Password, err = read("password"); err != nil {
		return nil, err
	}
	if a.Database, err = read("database"); err != nil {
		return nil, err
	}

	passwordEnv, err := read("password_env")
	if err != nil {
		return nil, err
	}
	if passwordEnv != "" {
		if a.Password != "" {
			return nil, fmt.Errorf("archive block: set either password or password_env, not both")
		}
		a.Password = os.Getenv(passwordEnv)
	}
	return a, nil
}

func (c *Config) validate() error {
	var errs []string

	graphs := make(map[string]struct{}, len(c.Graphs))
	for _, g := range c.Graphs {
		if _, dup := graphs[g.Name]; dup {
			errs = append(errs, fmt.Sprintf("graph %q is declared twice", g.Name))
		}
		graphs[g.Name] = struct{}{}
		if g.File == "" {
			errs = append(errs, fmt.Sprintf("graph %q: file is empty", g.Name))
		}
	}

	schedules := make(map[string]struct{}, len(c.Schedules))
	for _, s := range c.Schedules {
		if _, dup := schedules[s.Name]; dup {
			errs = append(errs, fmt.Sprintf("schedule %q is declared twice", s.Name))
		}
		schedules[s.Name] = struct{}{}
		if _, ok := graphs[s.Graph]; !ok {
			errs = append(errs, fmt.Sprintf("schedule %q runs graph %q, which is not declared", s.Name, s.Graph))
		}
		if _, err := cron.ParseStandard(s.Cron); err != nil {
			errs = append(errs, fmt.Sprintf("schedule %q: invalid cron expression %q: %v", s.Name, s.Cron, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("workspace validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

func (c *Config) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Dir, path)
}

// ModulesDir returns the manifest directory with relative paths resolved.
func (c *Config) ModulesDir() string {
	return c.resolve(c.ModulesPath)
}

// ScriptPaths returns the script files with relative paths resolved.
func (c *Config) ScriptPaths() []string {
	out := make([]string, len(c.Scripts))
	for i, s := range c.Scripts {
		out[i] = c.resolve(s)
	}
	return out
}

// GraphFile returns the resolved file path of a declared graph.
func (c *Config) GraphFile(name string) (string, bool) {
	for _, g := range c.Graphs {
		if g.Name == name {
			return c.resolve(g.File), true
		}
	}
	return "", false
}

func stringAttr(attr *hcl.Attribute) (string, error) {
	val, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return "", diags
	}
	if val.Type() != cty.String {
		return "", fmt.Errorf("expected a string, got %s", val.Type().FriendlyName())
	}
	return val.AsString(), nil
}

func stringListAttr(attr *hcl.Attribute) ([]string, error) {
	val, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return nil, diags
	}
	if !val.CanIterateElements() {
		return nil, fmt.Errorf("expected a list of strings, got %s", val.Type().FriendlyName())
	}
	var out []string
	for it := val.ElementIterator(); it.Next(); {
		_, v := it.Element()
		if v.Type() != cty.String {
			return nil, fmt.Errorf("expected a list of strings, found %s element", v.Type().FriendlyName())
		}
		out = append(out, v.AsString())
	}
	return out, nil
}
