// Package envfile parses KEY=VALUE environment files, expands ${NAME}
// references, merges several files with later-file-wins semantics and applies
// the result to an environment under an override policy. Parsed files are
// cached by path and modification time.
package envfile
