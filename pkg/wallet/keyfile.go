package wallet

import (
	"fmt"
	"os"

	"github.com/uhyunpark/behype/pkg/crypto"
)

// LoadKeyFile reads a hex private key (optionally 0x-prefixed, trailing
// newline allowed) and returns a signer for it.
func LoadKeyFile(path string) (*crypto.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	signer, err := crypto.FromPrivateKeyHex(string(data))
	if err != nil {
		return nil, fmt.Errorf("key file %s: %w", path, err)
	}
	return signer, nil
}

// WriteKeyFile stores the signer's key with owner-only permissions.
func WriteKeyFile(path string, signer *crypto.Signer) error {
	if err := os.WriteFile(path, []byte("0x"+signer.PrivateKeyHex()+"\n"), 0o600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	return nil
}
