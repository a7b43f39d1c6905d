package pcrypto

import (
	"bytes"
	"testing"
)

func TestRSARoundTrip(t *testing.T) {
	b := StdlibBackend{}
	priv, err := b.GenerateRSA(2048)
	if err != nil {
		t.Fatalf("GenerateRSA: %v", err)
	}

	der, err := b.PrivateToBinary(priv)
	if err != nil {
		t.Fatalf("PrivateToBinary: %v", err)
	}
	loaded, err := b.LoadPrivate(der)
	if err != nil {
		t.Fatalf("LoadPrivate: %v", err)
	}
	if loaded.D.Cmp(priv.D) != 0 {
		t.Fatalf("round-tripped private key does not match")
	}

	pubDER, err := b.PublicToBinary(&priv.PublicKey)
	if err != nil {
		t.Fatalf("PublicToBinary: %v", err)
	}
	pub, err := b.LoadPublic(pubDER)
	if err != nil {
		t.Fatalf("LoadPublic: %v", err)
	}
	if pub.N.Cmp(priv.PublicKey.N) != 0 {
		t.Fatalf("round-tripped public key does not match")
	}
}

func TestRSAEncryptDecryptData(t *testing.T) {
	b := StdlibBackend{}
	priv, err := b.GenerateRSA(2048)
	if err != nil {
		t.Fatalf("GenerateRSA: %v", err)
	}
	msg := []byte("a short secret")
	ct, err := b.RSAEncryptData(&priv.PublicKey, msg)
	if err != nil {
		t.Fatalf("RSAEncryptData: %v", err)
	}
	pt, err := b.RSADecryptData(priv, ct)
	if err != nil {
		t.Fatalf("RSADecryptData: %v", err)
	}
	if !bytes.Equal(pt, msg) {
		t.Fatalf("decrypted = %q, want %q", pt, msg)
	}
}

func TestSymmetricKeyWrap(t *testing.T) {
	b := StdlibBackend{}
	priv, err := b.GenerateRSA(2048)
	if err != nil {
		t.Fatalf("GenerateRSA: %v", err)
	}
	var key SymmetricKey
	b.RandStrong(key[:])

	wrapped, err := b.RSAEncryptSymmetricKey(&priv.PublicKey, key)
	if err != nil {
		t.Fatalf("RSAEncryptSymmetricKey: %v", err)
	}
	unwrapped, err := b.RSADecryptSymmetricKey(priv, wrapped)
	if err != nil {
		t.Fatalf("RSADecryptSymmetricKey: %v", err)
	}
	if unwrapped != key {
		t.Fatalf("unwrapped key does not match original")
	}
}

func TestAES256BlockRoundTrip(t *testing.T) {
	b := StdlibBackend{}
	var key SymmetricKey
	b.RandStrong(key[:])

	enc, err := b.AES256CreateEncoder(key)
	if err != nil {
		t.Fatalf("AES256CreateEncoder: %v", err)
	}
	dec, err := b.AES256CreateDecoder(key)
	if err != nil {
		t.Fatalf("AES256CreateDecoder: %v", err)
	}

	plain := bytes.Repeat([]byte{0x42}, AES256BlockSize)
	ct, err := EncodeBlock(enc, plain)
	if err != nil {
		t.Fatalf("EncodeBlock: %v", err)
	}
	pt, err := DecodeBlock(dec, ct)
	if err != nil {
		t.Fatalf("DecodeBlock: %v", err)
	}
	if !bytes.Equal(pt, plain) {
		t.Fatalf("decoded = %x, want %x", pt, plain)
	}
}

func TestEncodeBlockRejectsWrongSize(t *testing.T) {
	b := StdlibBackend{}
	var key SymmetricKey
	enc, _ := b.AES256CreateEncoder(key)
	if _, err := EncodeBlock(enc, []byte("too short")); err != ErrInvalidBlockSize {
		t.Fatalf("EncodeBlock() err = %v, want ErrInvalidBlockSize", err)
	}
}

func TestGenSymmetricKeyFromPassDeterministic(t *testing.T) {
	b := StdlibBackend{}
	salt := []byte("fixed-salt")
	k1 := b.GenSymmetricKeyFromPass("hunter2", salt, 1000)
	k2 := b.GenSymmetricKeyFromPass("hunter2", salt, 1000)
	if k1 != k2 {
		t.Fatalf("GenSymmetricKeyFromPass not deterministic for identical inputs")
	}
	k3 := b.GenSymmetricKeyFromPass("different", salt, 1000)
	if k1 == k3 {
		t.Fatalf("GenSymmetricKeyFromPass produced identical keys for different passwords")
	}
}

func TestDerivePasswordFromPassphraseDeterministic(t *testing.T) {
	b := StdlibBackend{}
	p1 := b.DerivePasswordFromPassphrase("alice", "correct horse battery staple")
	p2 := b.DerivePasswordFromPassphrase("alice", "correct horse battery staple")
	if p1 != p2 {
		t.Fatalf("DerivePasswordFromPassphrase not deterministic")
	}
	if p1 == b.DerivePasswordFromPassphrase("bob", "correct horse battery staple") {
		t.Fatalf("DerivePasswordFromPassphrase ignored username")
	}
}

func TestDerivePasswordFromPassphraseIsCaseInsensitiveOnUsername(t *testing.T) {
	b := StdlibBackend{}
	lower := b.DerivePasswordFromPassphrase("bob", "correct horse battery staple")
	mixed := b.DerivePasswordFromPassphrase("Bob", "correct horse battery staple")
	upper := b.DerivePasswordFromPassphrase("BOB", "correct horse battery staple")
	if lower != mixed || lower != upper {
		t.Fatalf("DerivePasswordFromPassphrase not case-insensitive on username: %q, %q, %q", lower, mixed, upper)
	}
}

func TestMemClean(t *testing.T) {
	buf := []byte{1, 2, 3, 4}
	StdlibBackend{}.MemClean(buf)
	for _, b := range buf {
		if b != 0 {
			t.Fatalf("MemClean left non-zero byte: %v", buf)
		}
	}
}
