package authstore

import (
	"context"
	"fmt"
	"time"

	vault "github.com/hashicorp/vault/api"
)

// Client wraps a Vault client scoped to the "secret/lattice/<forge>/..."
// namespace a forge auth lookup reads from.
type Client struct {
	client *vault.Client
	ctx    context.Context
}

// NewClient builds a Client from the standard VAULT_ADDR/VAULT_TOKEN
// environment, same as the host's vault CLI.
func NewClient(ctx context.Context) (*Client, error) {
	config := vault.DefaultConfig()
	if config == nil {
		return nil, fmt.Errorf("failed to create default vault config")
	}

	client, err := vault.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	return &Client{client: client, ctx: ctx}, nil
}

func (c *Client) getSecret(path string) (map[string]interface{}, error) {
	secret, err := c.client.KVv2("secret").Get(c.ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret at %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("no data found at %s", path)
	}
	return secret.Data, nil
}

// IsReachable reports whether the Vault server responds within a short
// deadline, used by 'lattice auth' to explain a forge-auth failure.
func (c *Client) IsReachable() bool {
	ctx, cancel := context.WithTimeout(c.ctx, 2*time.Second)
	defer cancel()

	_, err := c.client.Sys().HealthWithContext(ctx)
	return err == nil
}

// GetSSHKey retrieves the SSH key for forge, trying a repo-specific path
// before falling back to the forge-wide default.
func (c *Client) GetSSHKey(forgeName, repoName string) (*SSHKey, error) {
	if repoName != "" {
		path := fmt.Sprintf("lattice/%s/%s/ssh", forgeName, repoName)
		if data, err := c.getSecret(path); err == nil {
			return parseSSHKey(data)
		}
	}

	data, err := c.getSecret(fmt.Sprintf("lattice/%s/default_ssh", forgeName))
	if err != nil {
		return nil, fmt.Errorf("no SSH key found for %s (tried repo-specific and default): %w", forgeName, err)
	}
	return parseSSHKey(data)
}

// GetPAT retrieves a Personal Access Token for forge, trying a
// repo-specific path before falling back to the forge-wide default.
func (c *Client) GetPAT(forgeName, repoName string) (string, error) {
	if repoName != "" {
		path := fmt.Sprintf("lattice/%s/%s/pat", forgeName, repoName)
		if data, err := c.getSecret(path); err == nil {
			if token, ok := data["token"].(string); ok {
				return token, nil
			}
		}
	}

	data, err := c.getSecret(fmt.Sprintf("lattice/%s/default_pat", forgeName))
	if err != nil {
		return "", fmt.Errorf("no PAT found for %s (tried repo-specific and default): %w", forgeName, err)
	}
	token, ok := data["token"].(string)
	if !ok {
		return "", fmt.Errorf("PAT data for %s is missing its 'token' field", forgeName)
	}
	return token, nil
}

func parseSSHKey(data map[string]interface{}) (*SSHKey, error) {
	privateKey, ok := data["private_key"].(string)
	if !ok {
		return nil, fmt.Errorf("SSH key data missing 'private_key' field")
	}
	key := &SSHKey{PrivateKey: privateKey}
	if publicKey, ok := data["public_key"].(string); ok {
		key.PublicKey = publicKey
	}
	return key, nil
}
