// Copyright (c) 2025 KeyNest Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build windows
// +build windows

package vault

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/keynest/keynest-tui/internal/util"
)

// WindowsKeyStore protects the key with DPAPI before writing it to disk.
// DPAPI binds the ciphertext to the logged-in Windows user, so a copied
// key file is useless on another machine or account.
type WindowsKeyStore struct {
	path string
}

// NewKeyStore returns a DPAPI-backed key store rooted at path.
func NewKeyStore(path string) KeyStore {
	return &WindowsKeyStore{path: path}
}

var (
	crypt32             = windows.NewLazySystemDLL("crypt32.dll")
	kernel32            = windows.NewLazySystemDLL("kernel32.dll")
	procProtectData     = crypt32.NewProc("CryptProtectData")
	procUnprotectData   = crypt32.NewProc("CryptUnprotectData")
	procLocalFree       = kernel32.NewProc("LocalFree")
	cryptprotectUIForbidden = uintptr(0x01)
)

type dataBlob struct {
	cbData uint32
	pbData *byte
}

func newBlob(d []byte) *dataBlob {
	if len(d) == 0 {
		return &dataBlob{}
	}
	return &dataBlob{cbData: uint32(len(d)), pbData: &d[0]}
}

func (b *dataBlob) bytes() []byte {
	if b.cbData == 0 || b.pbData == nil {
		return nil
	}
	out := make([]byte, b.cbData)
	copy(out, unsafe.Slice(b.pbData, b.cbData))
	return out
}

func dpapiEncrypt(data []byte) ([]byte, error) {
	var out dataBlob
	r, _, err := procProtectData.Call(
		uintptr(unsafe.Pointer(newBlob(data))),
		0, 0, 0, 0,
		cryptprotectUIForbidden,
		uintptr(unsafe.Pointer(&out)),
	)
	if r == 0 {
		return nil, fmt.Errorf("CryptProtectData failed: %w", err)
	}
	defer procLocalFree.Call(uintptr(unsafe.Pointer(out.pbData)))
	return out.bytes(), nil
}

func dpapiDecrypt(data []byte) ([]byte, error) {
	var out dataBlob
	r, _, err := procUnprotectData.Call(
		uintptr(unsafe.Pointer(newBlob(data))),
		0, 0, 0, 0,
		cryptprotectUIForbidden,
		uintptr(unsafe.Pointer(&out)),
	)
	if r == 0 {
		return nil, fmt.Errorf("CryptUnprotectData failed: %w", err)
	}
	defer procLocalFree.Call(uintptr(unsafe.Pointer(out.pbData)))
	return out.bytes(), nil
}

// Store encrypts the key with DPAPI and writes it to the key file.
func (w *WindowsKeyStore) Store(key []byte) error {
	encrypted, err := dpapiEncrypt(key)
	if err != nil {
		return fmt.Errorf("failed to protect key: %w", err)
	}
	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	if err := util.AtomicWriteFileWithDir(w.path, encrypted, 0600, 0700); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return nil
}

// Retrieve reads the key file and decrypts it with DPAPI.
func (w *WindowsKeyStore) Retrieve() ([]byte, error) {
	encrypted, err := os.ReadFile(w.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	key, err := dpapiDecrypt(encrypted)
	if err != nil {
		return nil, fmt.Errorf("failed to unprotect key: %w", err)
	}
	return key, nil
}

// Delete removes the key file.
func (w *WindowsKeyStore) Delete() error {
	if err := os.Remove(w.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete key file: %w", err)
	}
	return nil
}

// Exists checks if the key file exists.
func (w *WindowsKeyStore) Exists() bool {
	_, err := os.Stat(w.path)
	return err == nil
}
