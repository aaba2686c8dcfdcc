// Package profile provides optional runtime profiling for hbml.
//
// Profiling uses [github.com/pkg/profile] and is compiled in only with the
// "pprof" build tag:
//
//	go build -tags pprof .
//	hbml --pprof-mode cpu render page.hbml
//
// Without the tag [Config.Start] is a no-op and [Modes] is empty.
//
// Supported modes are allocs, block, clock, cpu, goroutine, heap, mem,
// mutex, thread and trace. Profiles are written to the configured directory
// and can be inspected with "go tool pprof".
package profile

// Tag is the build tag required to enable profiling.
const Tag = `pprof`
