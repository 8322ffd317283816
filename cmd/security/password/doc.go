// Package password hashes and verifies user passwords.
//
// Two encodings are produced and accepted:
//   - Argon2id in PHC form: $argon2id$v=19$m=<KiB>,t=<iter>,p=<par>$<salt>$<key>
//   - bcrypt: $2a$/$2b$/$2y$ modular crypt strings
//
// Config.Hash uses the configured Algorithm. Config.Verify detects the format from
// the encoded string, so switching algorithms does not lock out existing users.
// Encoded hashes are untrusted input; cost parameters far above the configured
// ones are rejected before any work is done.
package password
