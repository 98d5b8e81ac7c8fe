package contract

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Decode parses one contract document. JSON documents are accepted as
// they are valid YAML.
func Decode(data []byte) (*Contract, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var c Contract
	if err := dec.Decode(&c); err != nil {
		return nil, &Error{Message: "decode", Cause: err}
	}
	return &c, nil
}

// IsContractFile reports whether name has a contract file extension.
func IsContractFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// LoadDir reads every contract file directly under dir, in lexical order.
// A missing directory yields no contracts.
func LoadDir(dir string) ([]*Contract, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read contracts dir %q: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var out []*Contract
	for _, e := range entries {
		if e.IsDir() || !IsContractFile(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read contract %q: %w", path, err)
		}
		c, err := Decode(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if err := Validate(c); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// FileName is the file a contract is saved under.
func FileName(name string) string {
	return name + ".yaml"
}

// Save writes c to dir as YAML, replacing any earlier file of the same contract.
func Save(dir string, c *Contract) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create contracts dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode contract %s: %w", c.ControllerName, err)
	}
	if err := removeFiles(dir, c.ControllerName, FileName(c.ControllerName)); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, FileName(c.ControllerName)), data, 0o644)
}

// Delete removes every file holding the named contract.
// It returns ErrNotFound when no file matched.
func Delete(dir, name string) error {
	entries, err := os.ReadDir(dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	found := false
	for _, e := range entries {
		if e.IsDir() || !IsContractFile(e.Name()) {
			continue
		}
		if contractNameOf(filepath.Join(dir, e.Name())) == name {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return removeFiles(dir, name, "")
}

func removeFiles(dir, name, keep string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !IsContractFile(e.Name()) || e.Name() == keep {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if contractNameOf(path) != name {
			continue
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove %q: %w", path, err)
		}
	}
	return nil
}

func contractNameOf(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	var head struct {
		ControllerName string `yaml:"controllerName"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return ""
	}
	return head.ControllerName
}
