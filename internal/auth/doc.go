// Package auth handles user accounts and session tokens.
//
// Passwords are hashed with Argon2id and stored in PHC string form.
// Sessions use a short-lived JWT access token validated by signature
// alone, paired with an opaque refresh token whose SHA-256 hash is kept
// in the database. Websocket connections authenticate with the same
// access token, passed as a query parameter because browsers cannot set
// headers on websocket upgrades.
package auth
