// internal/form/definition.go
//
// Forms subsystem: YAML definition loader.
//
// Context
//   Each HTML form is declared in a YAML file.  The file names the form's
//   identifier, title, submit label, and its fields in display order.
//   Component packages embed their defaults (e.g. “auth/login”) and register
//   them at start-up; an optional override directory (`paths.forms`) is
//   loaded afterwards so operators can change labels or placeholders without
//   a rebuild.
//
// Workflow
//   •  LoadFormDef / LoadFormDefFS parse a single YAML file and validate
//      structural rules.
//   •  RegisterFS loads every “*.yaml” in an fs.FS directory (embedded
//      defaults).  RegisterDir does the same for an on-disk override
//      directory.  Later registrations win.
//   •  GetFormDef offers safe, read-only access to a parsed form by ID.
//
//------------------------------------------------------------------------------

package form

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------
// Data structures
// -----------------------------------------------------------------------------

// FormDef represents one form definition loaded from YAML.
//
// The form is uniquely identified by ID, namespaced by component, e.g.
// “auth/login”.
type FormDef struct {
	ID     string     `yaml:"id"`     // Component-scoped identifier.
	Title  string     `yaml:"title"`  // Display title, optional.
	Submit string     `yaml:"submit"` // Submit button label.
	Fields []FieldDef `yaml:"fields"` // Inputs in display order.
}

// FieldDef describes a single input control on the form.  Constraint
// attributes are client-side hints only; the server validates through
// internal/signin.
type FieldDef struct {
	Name         string `yaml:"name"`         // Submission key.  Required.
	Label        string `yaml:"label"`        // Human-readable label.  Required.
	Type         string `yaml:"type"`         // text, email, password.
	Placeholder  string `yaml:"placeholder"`  // Optional placeholder text.
	Autocomplete string `yaml:"autocomplete"` // Optional autocomplete token.
	Required     bool   `yaml:"required"`     // True if input is mandatory.
	MinLength    int    `yaml:"minlength"`    // ≥ 0, 0 means unset.
	Revealable   bool   `yaml:"revealable"`   // Password may be shown as text.
}

var supportedTypes = map[string]bool{
	"text":     true,
	"email":    true,
	"password": true,
}

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

var (
	registryMu sync.RWMutex
	registry   = make(map[string]*FormDef)
)

// GetFormDef returns a parsed FormDef by composite ID (“component/form”).
// The boolean is false when the ID is unknown.
func GetFormDef(id string) (*FormDef, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	fd, ok := registry[id]
	return fd, ok
}

// Register inserts or overrides fd.  Caller must ensure fd passed validation.
func Register(fd *FormDef) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[fd.ID]; ok {
		zap.S().Debugw("form definition overridden", "form", fd.ID)
	}
	registry[fd.ID] = fd
}

// -----------------------------------------------------------------------------
// Loader API
// -----------------------------------------------------------------------------

// LoadFormDef parses one YAML file from disk.  It never mutates the registry.
func LoadFormDef(p string) (*FormDef, error) {
	raw, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read form file %s: %w", p, err)
	}
	return parseFormDef(raw, p)
}

// LoadFormDefFS is LoadFormDef for an fs.FS, typically an embed.FS.
func LoadFormDefFS(fsys fs.FS, name string) (*FormDef, error) {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read form file %s: %w", name, err)
	}
	return parseFormDef(raw, name)
}

// RegisterFS loads every “*.yaml” directly under dir in fsys.
func RegisterFS(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("RegisterFS: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		fd, err := LoadFormDefFS(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return err // fail fast so issues surface loudly.
		}
		Register(fd)
	}
	return nil
}

// RegisterDir loads an on-disk override directory.  A missing directory is
// not an error; an empty dir argument is a no-op.
func RegisterDir(dir string) error {
	if dir == "" {
		return nil
	}
	err := RegisterFS(os.DirFS(dir), ".")
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		zap.S().Debugw("form override dir absent", "dir", dir)
		return nil
	}
	return err
}

func parseFormDef(raw []byte, name string) (*FormDef, error) {
	var fd FormDef
	if err := yaml.Unmarshal(raw, &fd); err != nil {
		return nil, fmt.Errorf("parse YAML %s: %w", name, err)
	}
	if err := validateFormDef(&fd, name); err != nil {
		return nil, err
	}
	return &fd, nil
}

// -----------------------------------------------------------------------------
// Validation helpers
// -----------------------------------------------------------------------------

// validateFormDef enforces structural rules that cannot be expressed via YAML
// tags alone.
func validateFormDef(fd *FormDef, name string) error {
	if fd.ID == "" {
		return fmt.Errorf("form definition %s: missing required 'id'", name)
	}
	if len(fd.Fields) == 0 {
		return fmt.Errorf("form definition %s: must have 'fields'", name)
	}
	if fd.Submit == "" {
		fd.Submit = "Submit"
	}

	seen := make(map[string]struct{}, len(fd.Fields))
	for i := range fd.Fields {
		f := &fd.Fields[i]
		if err := validateField(f, name); err != nil {
			return err
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("form %s: duplicate field name '%s'", name, f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}

// validateField confirms that essential attributes are present and sane.
func validateField(f *FieldDef, name string) error {
	if f.Name == "" {
		return fmt.Errorf("form %s: field missing 'name'", name)
	}
	if f.Label == "" {
		return fmt.Errorf("form %s: field '%s' missing 'label'", name, f.Name)
	}
	if !supportedTypes[f.Type] {
		return fmt.Errorf("form %s: field '%s' has unsupported type %q", name, f.Name, f.Type)
	}
	if f.Revealable && f.Type != "password" {
		return fmt.Errorf("form %s: field '%s' revealable only applies to passwords", name, f.Name)
	}
	if f.MinLength < 0 {
		return fmt.Errorf("form %s: field '%s' minlength cannot be negative", name, f.Name)
	}
	return nil
}
