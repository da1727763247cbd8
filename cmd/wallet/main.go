package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/anoncoinproject/anoncoin/storage"
	"github.com/anoncoinproject/anoncoin/wallet"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	fs := flag.NewFlagSet("", flag.ExitOnError)
	dir := fs.String("datadir", "./data", "data directory holding wallets.json")
	fs.Parse(os.Args[2:])

	store, err := storage.NewStore(*dir)
	if err != nil {
		log.Fatalf("open data directory: %v", err)
	}

	switch os.Args[1] {
	case "generate":
		generate(store)
	case "recover":
		recoverWallet(store, fs.Args())
	case "address":
		showAddress(store, fs.Args())
	default:
		fmt.Printf("unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  wallet generate [-datadir dir]                            generate a wallet from a fresh mnemonic")
	fmt.Println("  wallet recover [-datadir dir] <mnemonic|private_key_hex>  recover a wallet and register it")
	fmt.Println("  wallet address [-datadir dir] <hex_address>               print the stored public key for an address")
}

func generate(store *storage.Store) {
	w, mnemonic, err := wallet.NewMnemonic()
	if err != nil {
		log.Fatalf("generate wallet: %v", err)
	}
	saveWallet(store, w)

	fmt.Println("Wallet generated.")
	fmt.Println("Address:    ", w.Address())
	fmt.Println("Mnemonic:   ", mnemonic)
	fmt.Println()
	fmt.Println("Write the mnemonic down; it is the only way to recover this wallet.")
}

func recoverWallet(store *storage.Store, args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: wallet recover <mnemonic|private_key_hex>")
		os.Exit(1)
	}
	input := args[0]

	w, err := wallet.FromSeed(input)
	if err != nil {
		w, err = wallet.FromPrivateKey(input)
		if err != nil {
			log.Fatalf("recover wallet: not a valid mnemonic or private key")
		}
	}
	saveWallet(store, w)

	fmt.Println("Wallet recovered.")
	fmt.Println("Address:   ", w.Address())
	fmt.Println("Public key:", w.PublicKeyHex())
}

func showAddress(store *storage.Store, args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: wallet address <hex_address>")
		os.Exit(1)
	}
	entries, err := store.LoadWallets()
	if err != nil {
		log.Fatalf("load wallets: %v", err)
	}
	for _, e := range entries {
		if e.Address == args[0] {
			fmt.Println("Public key:", e.PublicKeyHex)
			return
		}
	}
	fmt.Println("no wallet registered under that address")
	os.Exit(1)
}

func saveWallet(store *storage.Store, w *wallet.Wallet) {
	entries, err := store.LoadWallets()
	if err != nil {
		log.Fatalf("load wallets: %v", err)
	}
	entries = append(entries, storage.WalletEntry{
		Address:       w.Address(),
		PrivateKeyHex: w.PrivateKeyHex(),
		PublicKeyHex:  w.PublicKeyHex(),
	})
	if err := store.SaveWallets(entries); err != nil {
		log.Fatalf("save wallets: %v", err)
	}
}
