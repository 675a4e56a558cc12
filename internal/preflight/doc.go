// Package preflight provides readiness checks for the directories, binaries,
// and assets reframe depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and refuses to watch when a check
//     fails, so a misconfigured install fails loudly instead of silently
//     abandoning every file.
//   - The CLI "reframe check" command prints every result as a table.
package preflight
