// Package directory resolves agent ids to agent definitions. Agents come
// either from the backend's catalog endpoint or from a local TOML file;
// both sit behind the Lister interface, and Directory adds a load-once
// cache on top.
package directory
