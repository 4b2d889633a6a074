package client

// This file is only for test purpose and is only loaded by test framework.

// StubRandomBytes replaces the random source of the wallet sealing until the returned func is called.
func StubRandomBytes(f func(n uint32) ([]byte, error)) func() {
	previous := randomBytes
	randomBytes = f
	return func() { randomBytes = previous }
}
