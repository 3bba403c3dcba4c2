package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/artpar/conftree/adapters/aesgcm"
)

var passphrase string

var encryptCmd = &cobra.Command{
	Use:   "encrypt <value>",
	Short: "Encrypt a value for use as an encrypted configuration field",
	Args:  cobra.ExactArgs(1),
	RunE:  runEncrypt,
}

var decryptCmd = &cobra.Command{
	Use:   "decrypt <envelope>",
	Short: "Decrypt an encrypted configuration value",
	Args:  cobra.ExactArgs(1),
	RunE:  runDecrypt,
}

func init() {
	rootCmd.AddCommand(encryptCmd)
	rootCmd.AddCommand(decryptCmd)

	for _, c := range []*cobra.Command{encryptCmd, decryptCmd} {
		c.Flags().StringVar(&passphrase, "passphrase", "", "passphrase (or set CONFTREE_PASSPHRASE)")
	}
}

func resolvePassphrase() (string, error) {
	if passphrase != "" {
		return passphrase, nil
	}
	if v := os.Getenv("CONFTREE_PASSPHRASE"); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("no passphrase: use --passphrase or CONFTREE_PASSPHRASE")
}

func runEncrypt(cmd *cobra.Command, args []string) error {
	pass, err := resolvePassphrase()
	if err != nil {
		return err
	}
	out, err := aesgcm.NewWithPassphrase(pass).Encrypt(args[0])
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func runDecrypt(cmd *cobra.Command, args []string) error {
	pass, err := resolvePassphrase()
	if err != nil {
		return err
	}
	out, err := aesgcm.NewWithPassphrase(pass).Decrypt(args[0])
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}
