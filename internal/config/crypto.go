/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"fmt"
	"regexp"
)

// engineKey and engineIV are the 16-byte AES-CBC key/IV embedded in the
// engine (§6: "using AES-CBC with a 16-byte key and 16-byte IV embedded in
// the engine"). They are fixed, not operator-configurable: the threat
// model this protects against is accidental disclosure of config files at
// rest (e.g. in version control), not a secret the operator rotates.
var (
	engineKey = []byte("flowetl-cfg-key!")
	engineIV  = []byte("flowetl-cfg-iv!!")
)

var encFieldPattern = regexp.MustCompile(`enc@\(([^)]*)\)`)

// decryptFields replaces every enc@(<ciphertext>) scalar in raw YAML text
// with its decrypted plaintext, in place, before the document is
// unmarshaled (§6). Ciphertext is base64-encoded AES-CBC output,
// PKCS#7-padded.
func decryptFields(raw []byte) ([]byte, error) {
	var outerErr error
	out := encFieldPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		if outerErr != nil {
			return match
		}
		sub := encFieldPattern.FindSubmatch(match)
		plain, err := decryptAESCBC(string(sub[1]))
		if err != nil {
			outerErr = err
			return match
		}
		return []byte(plain)
	})
	if outerErr != nil {
		return nil, outerErr
	}
	return out, nil
}

func decryptAESCBC(b64ciphertext string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(b64ciphertext)
	if err != nil {
		return "", fmt.Errorf("enc@() field: invalid base64: %w", err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", fmt.Errorf("enc@() field: ciphertext is not a multiple of the AES block size")
	}
	block, err := aes.NewCipher(engineKey)
	if err != nil {
		return "", fmt.Errorf("enc@() field: %w", err)
	}
	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, engineIV).CryptBlocks(plain, ciphertext)
	return string(pkcs7Unpad(plain)), nil
}

func pkcs7Unpad(b []byte) []byte {
	if len(b) == 0 {
		return b
	}
	padLen := int(b[len(b)-1])
	if padLen <= 0 || padLen > len(b) || padLen > aes.BlockSize {
		return b
	}
	if !bytes.Equal(b[len(b)-padLen:], bytes.Repeat([]byte{byte(padLen)}, padLen)) {
		return b
	}
	return b[:len(b)-padLen]
}

// EncryptForConfig is the inverse of decryptAESCBC, exported for tests
// (the CLI has no command that calls it): it produces the ciphertext an
// operator would paste inside enc@(...).
func EncryptForConfig(plaintext string) (string, error) {
	block, err := aes.NewCipher(engineKey)
	if err != nil {
		return "", err
	}
	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, engineIV).CryptBlocks(out, padded)
	return base64.StdEncoding.EncodeToString(out), nil
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	padLen := blockSize - len(b)%blockSize
	return append(b, bytes.Repeat([]byte{byte(padLen)}, padLen)...)
}
