// Package model provides the domain types shared by every other package in
// pledge: identities, account and commitment references, the Commitment record,
// its write-once Outcome, and the events published after each command.
//
// This package imports nothing internal. store, vault, engine and cli all
// import model; model stays the foundational layer.
//
// Key design constraints:
//   - Amounts and timestamps are uint64 (unix seconds); no floats anywhere
//   - References are content-addressed: SHA-256 over a domain tag, a 0x00
//     separator and RFC 8785 canonical JSON (see hash.go)
//   - Descriptions are NFC-normalised before they are hashed or stored, so
//     visually identical descriptions map to the same commitment
//   - Outcome is a closed variant {Pending, Judged(success|failure), Reclaimed};
//     there is no nullable boolean
package model
