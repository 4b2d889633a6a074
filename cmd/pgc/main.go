package main

import (
	"fmt"
	"os"

	"github.com/mdouchement/paygate/internal/client"
	"github.com/spf13/cobra"
)

var (
	version  = "dev"
	revision = "none"
	date     = "unknown"
)

func main() {
	c := &cobra.Command{
		Use:     "pgc",
		Short:   "Paygate client, purchases access to paid contents",
		Version: fmt.Sprintf("%s - build %.7s @ %s", version, revision, date),
		Args:    cobra.NoArgs,
	}
	c.PersistentFlags().StringVarP(&client.Walletfile, "wallet", "w", client.Walletfile, "Sealed wallet location")
	c.AddCommand(initCmd)
	c.AddCommand(addressCmd)
	c.AddCommand(contentsCmd)
	c.AddCommand(buyCmd)
	c.AddCommand(receiptsCmd)
	c.AddCommand(transactionsCmd)
	c.AddCommand(removeCmd)

	if err := c.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

var (
	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Create a sealed wallet for a paygate server",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, args []string) error {
			return client.Init()
		},
	}

	addressCmd = &cobra.Command{
		Use:   "address",
		Short: "Print the address of the wallet",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, args []string) error {
			return client.Address()
		},
	}

	contentsCmd = &cobra.Command{
		Use:   "contents",
		Short: "List the published contents",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, args []string) error {
			return client.Contents()
		},
	}

	buyCmd = &cobra.Command{
		Use:   "buy CONTENT_ID",
		Short: "Purchase the access to a content",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return client.Buy(args[0])
		},
	}

	receiptsCmd = &cobra.Command{
		Use:   "receipts",
		Short: "List the access receipts owned by the wallet",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, args []string) error {
			return client.Receipts()
		},
	}

	transactionsCmd = &cobra.Command{
		Use:   "transactions",
		Short: "List the transactions sent by the wallet",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, args []string) error {
			return client.Transactions()
		},
	}

	removeCmd = &cobra.Command{
		Use:   "remove",
		Short: "Delete the sealed wallet",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, args []string) error {
			return client.Remove()
		},
	}
)
