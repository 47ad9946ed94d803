package crypto

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	eth_crypto "github.com/ethereum/go-ethereum/crypto"
)

const (
	testKeyHex  = "289c2857d4598e37fb9647507e47a309d6133539bf21a8b9cb6df88fd5232032"
	testAddrHex = "0x970e8128ab834e8eac17ab8e3812f010678cf791"
)

func TestFromPrivateKeyHex(t *testing.T) {
	for _, in := range []string{testKeyHex, "0x" + testKeyHex, "  " + testKeyHex + "\n"} {
		signer, err := FromPrivateKeyHex(in)
		if err != nil {
			t.Fatalf("FromPrivateKeyHex(%q): %v", in, err)
		}
		if !strings.EqualFold(signer.AddressHex(), testAddrHex) {
			t.Errorf("address = %s, want %s", signer.AddressHex(), testAddrHex)
		}
		if signer.AddressHex() != signer.Address().Hex() {
			t.Errorf("checksum %s disagrees with go-ethereum %s", signer.AddressHex(), signer.Address().Hex())
		}
		if signer.PrivateKeyHex() != testKeyHex {
			t.Errorf("private key mismatch after reload")
		}
	}

	if _, err := FromPrivateKeyHex("not-a-key"); err == nil {
		t.Error("expected error for malformed key")
	}
}

func TestGenerateKeyRoundTrip(t *testing.T) {
	signer1, err := GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	if signer1.Address() == (common.Address{}) {
		t.Error("generated zero address")
	}

	signer2, err := FromPrivateKeyHex(signer1.PrivateKeyHex())
	if err != nil {
		t.Fatalf("failed to load key: %v", err)
	}
	if signer2.Address() != signer1.Address() {
		t.Errorf("address = %s, want %s", signer2.Address().Hex(), signer1.Address().Hex())
	}
}

func TestSignAndRecover(t *testing.T) {
	signer, _ := GenerateKey()

	message := []byte("behype")
	signature, err := signer.SignMessage(message)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	if len(signature) != 65 {
		t.Errorf("signature length = %d, want 65", len(signature))
	}

	hash := eth_crypto.Keccak256Hash(message).Bytes()
	if !VerifySignature(signer.Address(), hash, signature) {
		t.Error("signature verification failed")
	}
	recovered, err := RecoverAddress(hash, signature)
	if err != nil {
		t.Fatalf("failed to recover address: %v", err)
	}
	if recovered != signer.Address() {
		t.Errorf("recovered address = %s, want %s", recovered.Hex(), signer.Address().Hex())
	}

	wrongAddr := common.HexToAddress("0x0000000000000000000000000000000000000001")
	if VerifySignature(wrongAddr, hash, signature) {
		t.Error("signature should not verify with wrong address")
	}
}

func TestInvalidSignature(t *testing.T) {
	signer, _ := GenerateKey()
	hash := common.BytesToHash([]byte("test")).Bytes()

	if VerifySignature(signer.Address(), hash, []byte{1, 2, 3}) {
		t.Error("invalid signature should not verify")
	}
	if VerifySignature(signer.Address(), []byte("short"), make([]byte, 65)) {
		t.Error("invalid hash should not verify")
	}
	if _, err := signer.Sign([]byte("short")); err == nil {
		t.Error("expected error signing a short hash")
	}
}

func TestNormalizeAddress(t *testing.T) {
	// EIP-55 reference vector
	want := "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

	got, err := NormalizeAddress(strings.ToLower(want))
	if err != nil {
		t.Fatalf("NormalizeAddress: %v", err)
	}
	if got != want {
		t.Errorf("NormalizeAddress = %s, want %s", got, want)
	}
	if got != common.HexToAddress(want).Hex() {
		t.Errorf("checksum disagrees with go-ethereum: %s", common.HexToAddress(want).Hex())
	}

	for _, bad := range []string{"", "5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", "0x1234", "0xzz"} {
		if _, err := NormalizeAddress(bad); err == nil {
			t.Errorf("NormalizeAddress(%q) should fail", bad)
		}
	}
}
