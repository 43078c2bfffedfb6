// Package cli defines the contact-relay command tree: serve (the default), verify and
// version. Commands share the --config and --debug flags and load the layered
// configuration from pkg/config before running.
package cli
