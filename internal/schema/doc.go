// Package schema describes the expected shape of environment variables.
//
// A schema maps variable names to fields. Fields may be written in shorthand
// (a *Type or a type annotation such as "list[int]") or in extended form (an
// object with type, required, default and constraint keys). Normalize turns
// either form, or a tree decoded from a YAML/JSON schema file, into a Schema
// whose every field carries a parsed *Type.
package schema
