package sparkwheel

import (
	"fmt"
	"net/url"
	"os"

	"github.com/cloudfoundry-community/vaultkv"
)

// vaultTargetPath is the `_target_` name an instantiation site uses to
// look up a Vault-backed secret, registered with RegisterBuiltins.
const vaultTargetPath = "sparkwheel.vault.Secret"

// vaultClient builds a vaultkv.Client from the standard VAULT_ADDR /
// VAULT_TOKEN environment variables, mirroring the teacher's
// op_vault.go address/token resolution. VAULT_SKIP_VERIFY is not read:
// TLS verification is left to the client's defaults. Built once per
// constructor call rather than a package-global cached client since a
// component instantiation may target a different Vault per call.
func vaultClient() (*vaultkv.Client, error) {
	addr := os.Getenv("VAULT_ADDR")
	if addr == "" {
		return nil, fmt.Errorf("VAULT_ADDR is not set")
	}
	parsed, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("parsing VAULT_ADDR %q: %w", addr, err)
	}

	return &vaultkv.Client{
		VaultURL:  parsed,
		AuthToken: os.Getenv("VAULT_TOKEN"),
	}, nil
}

// vaultSecretConstructor implements the "sparkwheel.vault.Secret"
// built-in component: `_args_: [path, key]` (key optional — when
// omitted the whole secret mapping is returned).
//
// Grounded on op_vault.go's globalKV.Get(secret, &ret, nil) call and
// its secret/key-path splitting (the teacher splits a `secret:key`
// single-string vault-operator argument; here path and key are
// separate positional _args_ entries, matching sparkwheel's
// "args as resolved child items" instantiation contract rather than
// graft's own colon-joined operator-argument string).
func vaultSecretConstructor(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("sparkwheel.vault.Secret requires at least a secret path argument")
	}
	secretPath, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("sparkwheel.vault.Secret: path argument must be a string")
	}

	client, err := vaultClient()
	if err != nil {
		return nil, err
	}

	var secret map[string]interface{}
	if _, err := client.NewKV().Get(secretPath, &secret, nil); err != nil {
		return nil, fmt.Errorf("reading vault secret %q: %w", secretPath, err)
	}

	if len(args) >= 2 {
		key, ok := args[1].(string)
		if !ok {
			return nil, fmt.Errorf("sparkwheel.vault.Secret: key argument must be a string")
		}
		val, ok := secret[key]
		if !ok {
			return nil, fmt.Errorf("vault secret %q has no key %q", secretPath, key)
		}
		return val, nil
	}

	return secret, nil
}
