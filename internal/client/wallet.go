package client

import (
	"fmt"
	"strings"

	"github.com/chzyer/readline"
	"github.com/mdouchement/paygate/pkg/paytx"
	"github.com/pkg/errors"
)

// Init creates a new wallet for the given paygate server.
// An existing key can be imported, otherwise a new one is generated.
func Init() error {
	cfg := Config{}

	endpoint, err := readline.Line("Endpoint: ")
	if err != nil {
		return errors.Wrap(err, "could not read endpoint from stdin")
	}
	cfg.Endpoint = strings.TrimSpace(endpoint)

	key, err := readline.Password("Key (empty to generate): ")
	if err != nil {
		return errors.Wrap(err, "could not read key from stdin")
	}

	var k *paytx.Keypair
	if len(key) == 0 {
		var seed []byte
		if seed, err = randomBytes(32); err == nil {
			k, err = paytx.KeypairFromSeed(seed)
		}
	} else {
		k, err = paytx.ParseKeypair(string(key))
	}
	if err != nil {
		return errors.Wrap(err, "could not get keypair")
	}
	cfg.Key = k.Export()

	fmt.Println("Address:", k.Address())
	return Save(cfg)
}

// Address prints the address of the wallet.
func Address() error {
	cfg, err := Load()
	if err != nil {
		return errors.Wrap(err, "could not load config")
	}

	k, err := cfg.Keypair()
	if err != nil {
		return err
	}

	fmt.Println(k.Address())
	return nil
}
