// SPDX-FileCopyrightText: 2025 The vmforge authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package sshkey generates the SSH key pair used to reach provisioned
// guests. The private half stays in the build directory for the
// caller, the public half is installed into the image.
package sshkey

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
)

// 2048 bit is plenty for a disposable test image and keeps generation
// fast.
const keyBits = 2048

const (
	privateFileName = "id_rsa"
	publicFileName  = "id_rsa.pub"
)

// Pair is a generated SSH key pair written to disk.
type Pair struct {
	// PrivatePath is the PEM encoded private key file.
	PrivatePath string

	// PublicPath is the public key file in authorized_keys format.
	PublicPath string

	// AuthorizedKey is the content of PublicPath.
	AuthorizedKey []byte
}

// Generate creates a fresh RSA key pair in dir, creating the directory
// if needed. Existing key files are overwritten.
func Generate(dir string) (*Pair, error) {
	err := os.MkdirAll(dir, 0o700)
	if err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}

	key, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	sshPub, err := ssh.NewPublicKey(key.Public())
	if err != nil {
		return nil, fmt.Errorf("convert public key: %w", err)
	}

	pair := &Pair{
		PrivatePath:   filepath.Join(dir, privateFileName),
		PublicPath:    filepath.Join(dir, publicFileName),
		AuthorizedKey: ssh.MarshalAuthorizedKey(sshPub),
	}

	err = os.WriteFile(pair.PrivatePath, privPEM, 0o600)
	if err != nil {
		return nil, fmt.Errorf("write private key: %w", err)
	}

	err = os.WriteFile(pair.PublicPath, pair.AuthorizedKey, 0o644)
	if err != nil {
		return nil, fmt.Errorf("write public key: %w", err)
	}

	return pair, nil
}
