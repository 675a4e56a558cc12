// Package deps reports whether the external tools reframe shells out to are
// installed.
package deps

// Status reports the availability of one external tool.
type Status struct {
	Name        string
	Command     string
	Description string
	Available   bool
	Detail      string
}
