// Package biometry is the HTTP client for the pet registry's nose-print
// endpoints.
//
// Search submits one encoded frame to the remote matcher and returns ranked
// candidates. FetchProfile loads the contact-complete identification profile
// of a matched pet. Register, Status and Delete manage an owner's stored
// nose-print and require explicit Credentials.
//
// The client never retries; callers decide whether a failure is worth another
// attempt using services.IsRecoverable.
package biometry
