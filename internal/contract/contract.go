// Package contract describes the declarative entity contracts the generator
// consumes: fields, embedded DTOs, custom service methods, indexes and
// policy flags.
package contract

import (
	"sort"
	"strings"
)

// Contract is the canonical description of one entity.
// Identity is ControllerName.
type Contract struct {
	ControllerName     string    `json:"controllerName" yaml:"controllerName" validate:"required,pascal"`
	SubPath            string    `json:"subPath,omitempty" yaml:"subPath,omitempty" validate:"omitempty,subpath"`
	Fields             []Field   `json:"fields" yaml:"fields" validate:"dive"`
	Messages           []Message `json:"messages,omitempty" yaml:"messages,omitempty" validate:"dive"`
	Services           []Service `json:"services,omitempty" yaml:"services,omitempty" validate:"dive"`
	Indexes            []Index   `json:"indexes,omitempty" yaml:"indexes,omitempty" validate:"dive"`
	Auth               bool      `json:"auth,omitempty" yaml:"auth,omitempty"`
	RootOnly           bool      `json:"rootOnly,omitempty" yaml:"rootOnly,omitempty"`
	GenerateEntities   *bool     `json:"generateEntities,omitempty" yaml:"generateEntities,omitempty"`
	GenerateController *bool     `json:"generateController,omitempty" yaml:"generateController,omitempty"`
}

// Field is a persisted property of the entity.
type Field struct {
	PropertyKey  string `json:"propertyKey" yaml:"propertyKey" validate:"required,ident"`
	ProtoType    string `json:"protoType" yaml:"protoType" validate:"required"`
	Nullable     bool   `json:"nullable,omitempty" yaml:"nullable,omitempty"`
	Repeated     bool   `json:"repeated,omitempty" yaml:"repeated,omitempty"`
	Link         []Link `json:"link,omitempty" yaml:"link,omitempty" validate:"dive"`
	DefaultValue any    `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
	Exclude      bool   `json:"exclude,omitempty" yaml:"exclude,omitempty"`
	ReadOnly     bool   `json:"readOnly,omitempty" yaml:"readOnly,omitempty"`
}

// Link points a field at another contract.
type Link struct {
	EntityName string `json:"entityName,omitempty" yaml:"entityName,omitempty" validate:"required_without=Contract"`
	Contract   string `json:"contract,omitempty" yaml:"contract,omitempty"`
	Field      string `json:"field,omitempty" yaml:"field,omitempty"`
}

// Target returns the name of the linked contract.
func (l Link) Target() string {
	if l.EntityName != "" {
		return l.EntityName
	}
	return l.Contract
}

// KeyField returns the field of the linked entity the value refers to.
func (l Link) KeyField() string {
	if l.Field == "" {
		return "id"
	}
	return l.Field
}

// Message is a DTO used as request or response shape of a custom method.
type Message struct {
	Name       string              `json:"name" yaml:"name" validate:"required,ident"`
	Properties map[string]Property `json:"properties" yaml:"properties" validate:"dive"`
}

// Property is one member of a Message.
type Property struct {
	Type      string `json:"type" yaml:"type"`
	Required  bool   `json:"required,omitempty" yaml:"required,omitempty"`
	ArrayType string `json:"arrayType,omitempty" yaml:"arrayType,omitempty"`
}

// NamedProperty is a Property paired with its key.
type NamedProperty struct {
	Name string
	Property
}

// OrderedProperties returns the properties sorted by name.
func (m *Message) OrderedProperties() []NamedProperty {
	out := make([]NamedProperty, 0, len(m.Properties))
	for name, p := range m.Properties {
		out = append(out, NamedProperty{Name: name, Property: p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Service is a custom method declared on the contract.
type Service struct {
	Name         string `json:"name,omitempty" yaml:"name,omitempty"`
	FunctionName string `json:"functionName" yaml:"functionName" validate:"required,ident"`
	Path         string `json:"path,omitempty" yaml:"path,omitempty"`
	Method       string `json:"method" yaml:"method" validate:"required,oneof=GET POST PUT PATCH DELETE get post put patch delete"`
	Request      string `json:"request,omitempty" yaml:"request,omitempty"`
	Response     string `json:"response,omitempty" yaml:"response,omitempty"`
	Auth         *bool  `json:"auth,omitempty" yaml:"auth,omitempty"`
	Module       string `json:"module,omitempty" yaml:"module,omitempty"`
	ServiceName  string `json:"serviceName,omitempty" yaml:"serviceName,omitempty"`
}

// IsQuery reports whether the method is exposed on the query root.
func (s *Service) IsQuery() bool {
	return strings.EqualFold(s.Method, "GET")
}

// Index is a declared lookup index.
type Index struct {
	Name   string   `json:"name,omitempty" yaml:"name,omitempty"`
	Fields []string `json:"fields" yaml:"fields" validate:"min=1"`
	Unique bool     `json:"unique,omitempty" yaml:"unique,omitempty"`
}

// Void marks a method without request or response payload.
const Void = "void"

// EntitiesEnabled reports the generateEntities gate. Absent means enabled.
func (c *Contract) EntitiesEnabled() bool {
	return c.GenerateEntities == nil || *c.GenerateEntities
}

// ControllerEnabled reports the generateController gate. Absent means enabled.
func (c *Contract) ControllerEnabled() bool {
	return c.GenerateController == nil || *c.GenerateController
}

// Message returns the DTO with the given name.
func (c *Contract) Message(name string) (*Message, bool) {
	for i := range c.Messages {
		if c.Messages[i].Name == name {
			return &c.Messages[i], true
		}
	}
	return nil, false
}

// Field returns the field with the given property key.
func (c *Contract) Field(key string) (*Field, bool) {
	for i := range c.Fields {
		if c.Fields[i].PropertyKey == key {
			return &c.Fields[i], true
		}
	}
	return nil, false
}

// SubPathSegments splits SubPath into its path segments.
func (c *Contract) SubPathSegments() []string {
	p := strings.Trim(c.SubPath, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// Bool returns a pointer to b, for the optional gates.
func Bool(b bool) *bool { return &b }
