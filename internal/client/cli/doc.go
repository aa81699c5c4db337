// Package cli implements challengectl, a command-line client for the
// challenge service.
//
// Usage:
//
//	challengectl [-a addr] [-token t] [-timeout s] [-c file] <command> [flags] [args]
//
// Commands: create, get, list, update, task, join, leave, delete, winner,
// export and token. Flags of a command precede its positional arguments,
// e.g. "leave -keep remove-all <challenge-id>". When no access token is
// configured the user is prompted for one without echo.
package cli
