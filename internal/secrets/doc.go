// Package secrets resolves secret references such as env://NAME,
// file:///path and secret://scheme/rest through a registry of providers keyed
// by URI scheme. Resolvers are independent; Default returns the shared one.
package secrets
