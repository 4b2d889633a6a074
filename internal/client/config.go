package client

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/chzyer/readline"
	"github.com/mdouchement/paygate/pkg/paytx"
	sargon2 "github.com/mdouchement/simple-argon2"
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const saltKeyLength = 16

// randomBytes generates the salt and the nonce of a sealed wallet.
var randomBytes = sargon2.GenerateRandomBytes

// Walletfile is the default location of the sealed wallet.
var Walletfile = "~/.paygate"

// A Config holds client's configuration.
type Config struct {
	Endpoint string `json:"endpoint"`
	// Key is the exported keypair of the wallet.
	Key string `json:"key"`
}

// Keypair returns the keypair of the wallet.
func (c Config) Keypair() (*paytx.Keypair, error) {
	k, err := paytx.ParseKeypair(c.Key)
	return k, errors.Wrap(err, "could not parse wallet key")
}

// Remove removes the wallet file.
func Remove() error {
	filename, err := homedir.Expand(Walletfile)
	if err != nil {
		return errors.Wrap(err, "could not expand wallet path")
	}
	return os.Remove(filename)
}

// Load gets the configuration from the wallet file.
func Load() (Config, error) {
	filename, err := homedir.Expand(Walletfile)
	if err != nil {
		return Config{}, errors.Wrap(err, "could not expand wallet path")
	}
	fmt.Println("Loading wallet from " + filename)

	ciphertext, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, errors.Wrap(err, "could not read wallet file")
	}

	passphrase, err := readline.Password("passphrase: ")
	if err != nil {
		return Config{}, errors.Wrap(err, "could not read passphrase from stdin")
	}

	return Open(ciphertext, passphrase)
}

// Save stores the configuration in the wallet file.
func Save(cfg Config) error {
	filename, err := homedir.Expand(Walletfile)
	if err != nil {
		return errors.Wrap(err, "could not expand wallet path")
	}

	fmt.Println("Storing wallet as " + filename)
	passphrase, err := readline.Password("passphrase: ")
	if err != nil {
		return errors.Wrap(err, "could not read passphrase from stdin")
	}

	ciphertext, err := Seal(cfg, passphrase)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return errors.Wrapf(err, "could not create %s", filename)
	}
	defer f.Close()

	_, err = f.Write(ciphertext)
	if err != nil {
		return errors.Wrap(err, "could not store wallet")
	}

	return errors.Wrap(f.Sync(), "could not store wallet")
}

// Seal encrypts the configuration with the given passphrase.
// The output is salt || nonce || ciphertext.
func Seal(cfg Config, passphrase []byte) ([]byte, error) {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "could not serialize config")
	}

	//
	// Key derivation of passphrase

	salt, err := randomBytes(saltKeyLength)
	if err != nil {
		return nil, errors.Wrap(err, "could not generate salt for wallet")
	}
	hash := argon2.IDKey(passphrase, salt, 3, 64<<10, 2, 32)

	//
	// Seal config

	aead, err := chacha20poly1305.NewX(hash)
	if err != nil {
		return nil, errors.Wrap(err, "could not create AEAD")
	}
	nonce, err := randomBytes(uint32(aead.NonceSize()))
	if err != nil {
		return nil, errors.Wrap(err, "could not generate nonce for wallet")
	}

	ciphertext := aead.Seal(nil, nonce, payload, nil)
	ciphertext = append(nonce, ciphertext...)
	return append(salt, ciphertext...), nil
}

// Open decrypts a configuration sealed with the given passphrase.
func Open(ciphertext, passphrase []byte) (Config, error) {
	var cfg Config
	if len(ciphertext) < saltKeyLength+chacha20poly1305.NonceSizeX {
		return cfg, errors.New("wallet file is truncated")
	}

	//
	// Key derivation of passphrase

	salt := ciphertext[:saltKeyLength]
	ciphertext = ciphertext[saltKeyLength:]
	hash := argon2.IDKey(passphrase, salt, 3, 64<<10, 2, 32)

	//
	// Open config

	aead, err := chacha20poly1305.NewX(hash)
	if err != nil {
		return cfg, errors.Wrap(err, "could not create AEAD")
	}

	nonce := ciphertext[:aead.NonceSize()]
	ciphertext = ciphertext[aead.NonceSize():]

	payload, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return cfg, errors.Wrap(err, "could not decrypt wallet file")
	}

	err = json.Unmarshal(payload, &cfg)
	return cfg, errors.Wrap(err, "could not parse config")
}
