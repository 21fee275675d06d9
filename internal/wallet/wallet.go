// Package wallet defines the signing seam and the testnet faucet client.
// Key derivation and transaction signing are performed by an external
// collaborator behind the Signer interface; this package never handles or
// persists secret material itself. Secrets live in process memory only for
// the lifetime of the session.
package wallet

// Signer is the external signing collaborator for a single address. SignTx
// takes an unsigned transaction object and returns the signed blob ready for
// submission together with the transaction hash.
type Signer interface {
	Address() string
	SignTx(tx map[string]any) (blob string, hash string, err error)
}
