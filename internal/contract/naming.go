package contract

import (
	"strings"

	"github.com/go-openapi/inflect"
)

// EntityName is the GraphQL type name of the contract's entity.
func (c *Contract) EntityName() string {
	return Pascal(c.ControllerName)
}

// EntityLower is the lowercase entity name used in file names and roles.
func (c *Contract) EntityLower() string {
	return strings.ToLower(c.EntityName())
}

// EntityCamel is the entity name with a lowercase first letter.
func (c *Contract) EntityCamel() string {
	return Camel(c.EntityName())
}

// ServiceName is the name the entity's default service is registered under.
func (c *Contract) ServiceName() string {
	return c.EntityName() + "Service"
}

// Role returns the scoped permission string for op.
func (c *Contract) Role(op string) string {
	return c.EntityLower() + ":" + op
}

// BackingService returns the service a custom method is bound to.
func (c *Contract) BackingService(s *Service) string {
	switch {
	case s.ServiceName != "" && s.Module != "":
		return s.Module + "." + s.ServiceName
	case s.ServiceName != "":
		return s.ServiceName
	default:
		return c.ServiceName()
	}
}

// MethodField is the root field name a custom method is exposed as.
func (c *Contract) MethodField(s *Service) string {
	return c.EntityCamel() + Pascal(s.FunctionName)
}

// Pascal converts identifiers like "order_item" or "orderItem" to "OrderItem".
func Pascal(s string) string {
	if s == "" {
		return s
	}
	if strings.ContainsAny(s, "_- ") {
		return inflect.Camelize(inflect.Underscore(s))
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Camel converts identifiers to lowerCamelCase.
func Camel(s string) string {
	p := Pascal(s)
	if p == "" {
		return p
	}
	return strings.ToLower(p[:1]) + p[1:]
}

// Snake converts identifiers to snake_case.
func Snake(s string) string {
	return inflect.Underscore(s)
}
