package client

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/mdouchement/paygate/pkg/libpg"
	"github.com/pkg/errors"
)

// Contents lists the contents published on the paygate server.
func Contents() error {
	cfg, err := Load()
	if err != nil {
		return errors.Wrap(err, "could not load config")
	}

	client, err := libpg.NewDefaultClient(cfg.Endpoint)
	if err != nil {
		return errors.Wrap(err, "could not reach paygate endpoint")
	}

	return PrintContents(os.Stdout, client)
}

// Buy purchases the access to a content and prints its locator.
func Buy(id string) error {
	cfg, err := Load()
	if err != nil {
		return errors.Wrap(err, "could not load config")
	}

	k, err := cfg.Keypair()
	if err != nil {
		return err
	}

	client, err := libpg.NewDefaultClient(cfg.Endpoint)
	if err != nil {
		return errors.Wrap(err, "could not reach paygate endpoint")
	}

	return Purchase(os.Stdout, client, id, k)
}

// Receipts lists the access receipts owned by the wallet.
func Receipts() error {
	cfg, err := Load()
	if err != nil {
		return errors.Wrap(err, "could not load config")
	}

	k, err := cfg.Keypair()
	if err != nil {
		return err
	}

	client, err := libpg.NewDefaultClient(cfg.Endpoint)
	if err != nil {
		return errors.Wrap(err, "could not reach paygate endpoint")
	}

	return PrintReceipts(os.Stdout, client, k.Address())
}

// Transactions lists the transactions sent by the wallet.
func Transactions() error {
	cfg, err := Load()
	if err != nil {
		return errors.Wrap(err, "could not load config")
	}

	k, err := cfg.Keypair()
	if err != nil {
		return err
	}

	client, err := libpg.NewDefaultClient(cfg.Endpoint)
	if err != nil {
		return errors.Wrap(err, "could not reach paygate endpoint")
	}

	return PrintTransactions(os.Stdout, client, k.Address())
}

// PrintContents writes the published contents to w.
func PrintContents(w io.Writer, client libpg.Client) error {
	contents, err := client.Contents()
	if err != nil {
		return errors.Wrap(err, "could not list contents")
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tPRICE\tCREATOR")
	for _, c := range contents {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.ID, c.Title, c.Price, c.Creator)
	}
	return tw.Flush()
}

// Purchase unlocks a content with the given signer and writes the outcome to w.
func Purchase(w io.Writer, client libpg.Client, id string, signer libpg.Signer) error {
	content, execution, err := libpg.Purchase(client, id, signer)
	if err != nil {
		if required, ok := libpg.IsPaymentRequired(err); ok {
			return errors.Errorf("could not purchase %s for %s: %s", id, required.Payment.Amount, required.Message)
		}
		if execution != nil {
			fmt.Fprintln(w, "Transaction:", execution.Digest)
		}
		return errors.Wrap(err, "could not purchase content")
	}

	if execution != nil {
		fmt.Fprintln(w, "Transaction:", execution.Digest)
		fmt.Fprintln(w, "Gas used:", execution.Effects.GasUsed)
	}
	fmt.Fprintln(w, "Title:", content.Title)
	fmt.Fprintln(w, "URL:", content.ContentURL)
	return nil
}

// PrintReceipts writes the access receipts owned by address to w.
func PrintReceipts(w io.Writer, client libpg.Client, address string) error {
	receipts, err := client.Receipts(address)
	if err != nil {
		return errors.Wrap(err, "could not list receipts")
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RECEIPT\tCONTENT\tTITLE\tPRICE PAID\tTIMESTAMP")
	for _, r := range receipts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.ContentID, r.ContentTitle, r.PricePaid, r.Timestamp)
	}
	return tw.Flush()
}

// PrintTransactions writes the transactions sent by address to w.
func PrintTransactions(w io.Writer, client libpg.Client, address string) error {
	transactions, err := client.Transactions(address)
	if err != nil {
		return errors.Wrap(err, "could not list transactions")
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DIGEST\tSTATUS\tGAS USED\tERROR\tCREATED AT")
	for _, t := range transactions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", t.Digest, t.Status, t.Effects.GasUsed, t.Effects.ErrorTag, t.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}
