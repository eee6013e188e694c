package knol

import "testing"

func TestHash(t *testing.T) {
	t.Run("generates correct hash", func(t *testing.T) {
		// sha256("abc")
		expectedHash := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
		hash := Hash("abc")

		if hash != expectedHash {
			t.Errorf("Expected hash '%s', but got '%s'", expectedHash, hash)
		}
	})

	t.Run("hash is deterministic", func(t *testing.T) {
		if Hash("# Title") != Hash("# Title") {
			t.Error("Expected hashes for identical content to be the same")
		}
	})

	t.Run("no normalization", func(t *testing.T) {
		if Hash("What Is Go?") == Hash("what is go?") {
			t.Error("Expected content differing only in case to hash differently")
		}
		if Hash("x") == Hash(" x ") {
			t.Error("Expected content differing only in whitespace to hash differently")
		}
	})

	t.Run("checksum matches hash of same bytes", func(t *testing.T) {
		if Checksum([]byte("cells")) != Hash("cells") {
			t.Error("Expected Checksum and Hash to agree on identical input")
		}
	})
}
