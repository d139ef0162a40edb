// Package modgraph discovers the modules of a build.
//
// Starting from the configured entry, [Build] parses every module with
// package js, collects its static imports and require calls, and resolves
// each specifier to a project file or to an external reference that the
// host supplies at load time. The result is a [Graph]: the inlined modules,
// the externals they reference and the edges between them.
//
// # Resolution
//
// A specifier resolves, in order, to:
//
//  1. a configured external (externals win over files);
//  2. a Node built-in such as "fs" or "node:path", when the host is node;
//  3. a relative or absolute file, trying the path as written, then the
//     extensions .js .mjs .cjs .json, then package.json "main" and
//     index files of a directory;
//  4. a package under node_modules, searched from the importer's directory
//     up to the project root.
//
// Files matching an exclude pattern are not traversed. They become
// commonjs externals named by the original specifier.
//
// # Ordering
//
// Cycles are tolerated: each module is visited once. [Graph.Order] returns
// a depth-first post-order from the entry in import source order, so
// dependencies precede their dependents and the order is stable across
// machines and runs.
package modgraph
