package schema

// Built-in scalars and directives are shared by every schema. Render skips
// them by identity.
var (
	stringType  = NewType("String", TypeKindScalar, "UTF-8 text.")
	intType     = NewType("Int", TypeKindScalar, "Signed 32-bit integer.")
	floatType   = NewType("Float", TypeKindScalar, "Signed double-precision floating-point value.")
	booleanType = NewType("Boolean", TypeKindScalar, "true or false.")
	idType      = NewType("ID", TypeKindScalar, "Opaque unique identifier, serialized as a string.")

	includeDirective = conditionDirective("include", "Includes the selection only when `if` is true.")
	skipDirective    = conditionDirective("skip", "Skips the selection when `if` is true.")
)

func conditionDirective(name, description string) *Directive {
	d := NewDirective(name, description).
		AddArgument(NewInputValue("if", "", NonNullType(NamedType("Boolean"))))
	d.Locations = []string{"FIELD", "FRAGMENT_SPREAD", "INLINE_FRAGMENT"}
	return d
}

func addBuiltins(s *Schema) {
	for _, t := range []*Type{stringType, intType, floatType, booleanType, idType} {
		s.AddType(t)
	}
	s.AddDirective(includeDirective).AddDirective(skipDirective)
}
