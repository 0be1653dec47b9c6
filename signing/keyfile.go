package signing

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"runtime"
)

// requiredKeyFileMode is the exact permission LoadPEM demands: owner
// read-only, nothing else (spec §6 - "owner-read-only (0400 on POSIX)").
const requiredKeyFileMode = 0o400

// LoadPEM reads an Ed25519 private key from a PKCS#8 PEM file, refusing to
// proceed unless the file is owner-read-only (0400). This mirrors the
// permission discipline the teacher's keystore applies to keyfiles,
// adapted from a JSON keyfile to the PEM format Ed25519 tooling commonly
// uses for maintainer keys.
func LoadPEM(path string) (ed25519.PrivateKey, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("signing: stat %s: %w", path, err)
	}
	if runtime.GOOS != "windows" {
		if perm := info.Mode().Perm(); perm != requiredKeyFileMode {
			return nil, fmt.Errorf("signing: %s has mode %o, want %o (owner-read-only)", path, perm, requiredKeyFileMode)
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("signing: reading %s: %w", path, err)
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("signing: %s does not contain PEM data", path)
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("signing: parsing PKCS8 key in %s: %w", path, err)
	}

	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("signing: %s does not contain an Ed25519 private key", path)
	}
	return priv, nil
}

// WritePEM writes priv to path as PKCS#8 PEM with owner-read-only (0400)
// permissions, via a temp-file-then-rename so a crash never leaves a
// partial key on disk.
func WritePEM(path string, priv ed25519.PrivateKey) error {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return fmt.Errorf("signing: marshaling key: %w", err)
	}
	block := &pem.Block{Type: "PRIVATE KEY", Bytes: der}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, requiredKeyFileMode)
	if err != nil {
		return fmt.Errorf("signing: creating %s: %w", tmp, err)
	}
	if err := pem.Encode(f, block); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("signing: writing %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("signing: closing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("signing: renaming %s to %s: %w", tmp, path, err)
	}
	return nil
}
