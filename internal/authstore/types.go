// Package authstore is the thin Vault-backed collaborator that hands the
// forge client a Personal Access Token or SSH key. It has no opinion about
// which forge the token is for beyond the path it reads from.
package authstore

// SSHKey is a private/public key pair read from the store.
type SSHKey struct {
	PrivateKey string
	PublicKey  string
}
