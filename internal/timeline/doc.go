// Package timeline maintains a lazily-rebuilt cache of presentation models
// for a windowed message list, with structural diffing between snapshots and
// a single serial executor through which all cache mutations are funnelled.
package timeline
