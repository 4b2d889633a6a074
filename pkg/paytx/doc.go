//
// paytx is the wire format of payment-gated access transactions.
//

// An envelope is an ordered list of commands executed atomically by the ledger.
// Its canonical CBOR bytes are what every party signs, and its digest (a CIDv1) identifies it.
//
// Sign a payment-required envelope
//
//	b, err := base64.StdEncoding.DecodeString(required.TransactionBytes)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	envelope, err := paytx.Decode(b) // Inspect what you are about to pay.
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println("sender:", envelope.Sender)
//
//	keypair, err := paytx.ParseKeypair(seed)
//	if err != nil {
//		log.Fatal(err)
//	}
//	signature := keypair.Sign(b) // Never re-encode the envelope before signing.
//
// Verify a signature
//
//	signer, err := paytx.Verify(b, signature)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println("signed by", signer)
package paytx
