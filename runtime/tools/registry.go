package tools

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/deskpilot/deskpilot/runtime/providers"
)

// Registry maps tool names to descriptors and their bound implementations.
// It is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]*ToolDescriptor
	impls       map[string]Tool
	validator   *SchemaValidator
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		descriptors: make(map[string]*ToolDescriptor),
		impls:       make(map[string]Tool),
		validator:   NewSchemaValidator(),
	}
}

// Register adds or replaces a tool descriptor after validating it.
func (r *Registry) Register(descriptor *ToolDescriptor) error {
	if err := r.validateDescriptor(descriptor); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.descriptors[descriptor.Name] = descriptor
	return nil
}

// Bind attaches an implementation to a registered descriptor.
func (r *Registry) Bind(tool Tool) error {
	name := tool.Name()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.descriptors[name]; !ok {
		return &UnknownToolError{Name: name}
	}
	r.impls[name] = tool
	return nil
}

// Lookup returns the implementation and descriptor for name. Names that were
// never registered yield *UnknownToolError; registered names without an
// implementation yield ErrToolNotBound.
func (r *Registry) Lookup(name string) (Tool, *ToolDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	desc, ok := r.descriptors[name]
	if !ok {
		return nil, nil, &UnknownToolError{Name: name}
	}
	impl, ok := r.impls[name]
	if !ok {
		return nil, desc, fmt.Errorf("%s: %w", name, ErrToolNotBound)
	}
	return impl, desc, nil
}

// Get retrieves a tool descriptor by name, or nil when absent.
func (r *Registry) Get(name string) *ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.descriptors[name]
}

// List returns all registered tool names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.descriptors))
	for name := range r.descriptors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Descriptors returns all registered descriptors sorted by category, then name.
func (r *Registry) Descriptors() []*ToolDescriptor {
	r.mu.RLock()
	out := make([]*ToolDescriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		out = append(out, d)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Declarations returns the function declarations for every bound tool, sorted by name.
func (r *Registry) Declarations() []providers.FunctionDeclaration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	decls := make([]providers.FunctionDeclaration, 0, len(r.impls))
	for name := range r.impls {
		d := r.descriptors[name]
		decls = append(decls, providers.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.InputSchema,
		})
	}
	sort.Slice(decls, func(i, j int) bool { return decls[i].Name < decls[j].Name })
	return decls
}

// LoadCatalog loads every tool manifest from a (possibly multi-document) YAML
// or JSON source. The filename is used for format detection and error reporting.
func (r *Registry) LoadCatalog(filename string, data []byte) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".json" {
		var descriptor ToolDescriptor
		if err := json.Unmarshal(data, &descriptor); err != nil {
			return fmt.Errorf("failed to parse JSON tool file %s: %w", filename, err)
		}
		if err := r.Register(&descriptor); err != nil {
			return fmt.Errorf("invalid tool descriptor in %s: %w", filename, err)
		}
		return nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	for doc := 1; ; doc++ {
		var temp any
		err := dec.Decode(&temp)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to parse YAML tool file %s: %w", filename, err)
		}
		if temp == nil {
			continue
		}
		if err := r.loadManifest(fmt.Sprintf("%s#%d", filename, doc), temp); err != nil {
			return err
		}
	}
}

// loadManifest converts one decoded YAML document into a descriptor. YAML is
// round-tripped through JSON so that input_schema keeps its raw form.
func (r *Registry) loadManifest(source string, temp any) error {
	jsonData, err := json.Marshal(temp)
	if err != nil {
		return fmt.Errorf("failed to convert manifest to JSON for %s: %w", source, err)
	}

	var toolConfig ToolConfig
	if err := json.Unmarshal(jsonData, &toolConfig); err != nil {
		return fmt.Errorf("failed to unmarshal manifest %s: %w", source, err)
	}

	if toolConfig.APIVersion == "" {
		// Bare descriptor without the manifest envelope.
		var descriptor ToolDescriptor
		if err := json.Unmarshal(jsonData, &descriptor); err != nil {
			return fmt.Errorf("failed to unmarshal descriptor %s: %w", source, err)
		}
		if err := r.Register(&descriptor); err != nil {
			return fmt.Errorf("invalid tool descriptor in %s: %w", source, err)
		}
		return nil
	}

	if toolConfig.Kind != KindTool {
		return fmt.Errorf("tool config %s has invalid kind: expected '%s', got '%s'", source, KindTool, toolConfig.Kind)
	}
	if toolConfig.Metadata.Name == "" {
		return fmt.Errorf("tool config %s is missing metadata.name", source)
	}

	toolConfig.Spec.Name = toolConfig.Metadata.Name
	if toolConfig.Spec.Category == "" {
		toolConfig.Spec.Category = toolConfig.Metadata.Labels["category"]
	}
	if err := r.Register(&toolConfig.Spec); err != nil {
		return fmt.Errorf("invalid tool descriptor in %s: %w", source, err)
	}
	return nil
}

// LoadDir loads every .yaml, .yml and .json file in dir. Later files override
// earlier descriptors with the same name.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read tools dir %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml", ".json":
		default:
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path) //nolint:gosec // operator-supplied catalog directory
		if err != nil {
			return fmt.Errorf("failed to read tool file %s: %w", path, err)
		}
		if err := r.LoadCatalog(path, data); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) validateDescriptor(descriptor *ToolDescriptor) error {
	if descriptor.Name == "" {
		return ErrToolNameRequired
	}
	if descriptor.Description == "" {
		return ErrToolDescriptionRequired
	}
	if len(descriptor.InputSchema) == 0 {
		return ErrInputSchemaRequired
	}
	return r.validator.CheckSchema(descriptor)
}
