package contract

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	pascalPattern = regexp.MustCompile(`^[A-Z][A-Za-z0-9]*$`)
	identPattern  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// reserved keys are always present on the generated entity type.
var reservedKeys = map[string]struct{}{"id": {}, "createdAt": {}, "updatedAt": {}}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	mustRegister(v, "pascal", func(fl validator.FieldLevel) bool {
		return pascalPattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "ident", func(fl validator.FieldLevel) bool {
		return identPattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "subpath", func(fl validator.FieldLevel) bool {
		return validSubPath(fl.Field().String())
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

func validSubPath(p string) bool {
	if strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return false
	}
	for _, seg := range strings.Split(strings.Trim(p, "/"), "/") {
		if seg == "" || seg == "." || seg == ".." || !identPattern.MatchString(strings.ReplaceAll(seg, "-", "_")) {
			return false
		}
	}
	return true
}

// Validate checks a contract for structural and referential problems.
// The returned error is an Errors value matching ErrInvalidContract.
func Validate(c *Contract) error {
	if c == nil {
		return &Error{Message: "nil contract"}
	}
	var errs Errors
	add := func(path, format string, args ...any) {
		errs = append(errs, &Error{Contract: c.ControllerName, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return &Error{Contract: c.ControllerName, Message: "validation failed", Cause: err}
		}
		for _, fe := range verrs {
			add(trimNamespace(fe.Namespace()), "failed %q validation", fe.Tag())
		}
	}

	keys := map[string]struct{}{}
	for i, f := range c.Fields {
		path := fmt.Sprintf("fields[%d]", i)
		if _, ok := reservedKeys[f.PropertyKey]; ok {
			add(path, "property key %q is reserved", f.PropertyKey)
		}
		if _, ok := keys[f.PropertyKey]; ok {
			add(path, "duplicate property key %q", f.PropertyKey)
		}
		keys[f.PropertyKey] = struct{}{}
		if len(f.Link) > 0 && f.Link[0].Target() == "" {
			add(path+".link[0]", "link target is empty")
		}
	}

	messages := map[string]struct{}{}
	for i, m := range c.Messages {
		if _, ok := messages[m.Name]; ok {
			add(fmt.Sprintf("messages[%d]", i), "duplicate message %q", m.Name)
		}
		if m.Name == c.EntityName() {
			add(fmt.Sprintf("messages[%d]", i), "message %q collides with the entity name", m.Name)
		}
		messages[m.Name] = struct{}{}
	}

	functions := map[string]struct{}{}
	for i, s := range c.Services {
		path := fmt.Sprintf("services[%d]", i)
		if _, ok := functions[s.FunctionName]; ok {
			add(path, "duplicate function name %q", s.FunctionName)
		}
		functions[s.FunctionName] = struct{}{}
		if s.Request != "" && s.Request != Void {
			if _, ok := messages[s.Request]; !ok {
				add(path+".request", "unknown message %q", s.Request)
			}
		}
	}
	if c.ControllerEnabled() {
		checkRootFields(c, add)
	}

	for i, idx := range c.Indexes {
		for _, key := range idx.Fields {
			if _, ok := keys[key]; !ok && key != "id" {
				add(fmt.Sprintf("indexes[%d]", i), "unknown field %q", key)
			}
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// checkRootFields rejects custom methods whose root field collides with a
// standard operation or with an earlier method on the same root type.
func checkRootFields(c *Contract, add func(path, format string, args ...any)) {
	entity, camel := c.EntityName(), c.EntityCamel()
	taken := map[string]string{
		"Query." + camel + "Find":  "the find operation",
		"Query." + camel + "ById":  "the findById operation",
		"Mutation.create" + entity: "the create operation",
		"Mutation.update" + entity: "the update operation",
		"Mutation.delete" + entity: "the delete operation",
	}
	for i := range c.Services {
		s := &c.Services[i]
		if s.FunctionName == "" {
			continue
		}
		root := "Mutation"
		if s.IsQuery() {
			root = "Query"
		}
		name := c.MethodField(s)
		if owner, ok := taken[root+"."+name]; ok {
			add(fmt.Sprintf("services[%d].functionName", i), "root field %s.%s of %q collides with %s", root, name, s.FunctionName, owner)
			continue
		}
		taken[root+"."+name] = fmt.Sprintf("method %q", s.FunctionName)
	}
}

func trimNamespace(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
