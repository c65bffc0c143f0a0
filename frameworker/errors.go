package frameworker

import "errors"

var errCiphertextLenMismatch = errors.New("ciphertext_len does not match frame view")
