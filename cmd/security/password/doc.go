// Package password hashes and verifies account secrets with Argon2id.
//
// Encoded hashes use the PHC string layout
// ($argon2id$v=19$m=<KiB>,t=<iter>,p=<par>$<salt>$<key>) and are treated as
// untrusted input on Verify: parameters far above the configured cost are refused.
package password
