// Package credentials manages the credential lifecycle of accounts:
// registration, email verification, password login, password reset and
// linking of federated identities such as Google sign in.
//
// Manager:
//   - Manager is the entry point. It is built once from a Config, an
//     AccountStore, a ClaimsSigner and a Mailer and is safe for concurrent use.
//     Operations take a context.Context and fail fast once it is cancelled.
//   - Email uniqueness and single use tokens are enforced by the AccountStore.
//     The repository package provides a Bun implementation backed by SQLite
//     or PostgreSQL whose conditional updates consume a token at most once.
//
// Errors:
//   - Failures are go-errors values carrying a category, an HTTP code and a
//     text code. Sentinels such as ErrDuplicateEmail or ErrInvalidCredentials
//     are shared; clone them before attaching metadata.
//
// Activity sinks:
//   - ActivitySink receives registration, verification, login, reset and
//     federated linking events. Sinks run best-effort (errors are logged) so
//     metrics or audit logs never block authentication.
package credentials
