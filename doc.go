// Package veloxgraph holds the error types and cache interface shared by the
// graph inserter and the eager join loader.
//
// The insertion and loading logic lives in dialect/sql/sqlgraph, entity
// types and relations in schema, object graphs in entity and eager
// expressions in eager.
package veloxgraph
