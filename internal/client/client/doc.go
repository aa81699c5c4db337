// Package client talks to the challenge service over gRPC.
//
// GRPCClient manages the connection, attaches the access token to every call
// and maps statuses back to errors: Unauthenticated becomes ErrUnauthorized,
// Unavailable and DeadlineExceeded become ErrUnavailable, and domain failures
// become *apperr.Error values so callers can match them with errors.Is.
package client
