//
// libpg is client that interacts with a paygate API for purchasing access to contents.
//

// Create client
//
//	client, err := libpg.NewDefaultClient("https://paygate.nas.lan")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Request a content
//
//	content, err := client.Content(id, keypair.Address())
//	if required, ok := libpg.IsPaymentRequired(err); ok {
//		fmt.Println("price:", required.Payment.Amount)
//	}
//
// Purchase a content
//
//	keypair, err := paytx.ParseKeypair(seed)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	content, execution, err := libpg.Purchase(client, id, keypair)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println("digest:", execution.Digest)
//	fmt.Println("url:", content.ContentURL)
//
// List receipts
//
//	receipts, err := client.Receipts(keypair.Address())
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, receipt := range receipts {
//		fmt.Println(receipt.ContentTitle, receipt.PricePaid)
//	}
package libpg
