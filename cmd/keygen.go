package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/mezonai/textchain/logx"
	"github.com/mezonai/textchain/p2p"
)

var (
	keyOutPath string
	keyForce   bool
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a node identity key file",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := writeIdentity(keyOutPath, keyForce)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().StringVarP(&keyOutPath, "out", "o", "node.key", "Where to write the base58 private key")
	keygenCmd.Flags().BoolVar(&keyForce, "force", false, "Overwrite an existing key file")
}

// writeIdentity creates a new Ed25519 key at path and returns its peer id.
func writeIdentity(path string, force bool) (string, error) {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return "", errors.Errorf("key file %s already exists, use --force to overwrite", path)
		}
	}

	priv, err := p2p.GenerateIdentity()
	if err != nil {
		return "", errors.Wrap(err, "failed to generate identity")
	}
	encoded, err := p2p.EncodeIdentity(priv)
	if err != nil {
		return "", err
	}
	id, err := p2p.PeerIDOf(priv)
	if err != nil {
		return "", err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return "", errors.Wrapf(err, "failed to create %s", dir)
		}
	}
	if err := os.WriteFile(path, []byte(encoded+"\n"), 0o600); err != nil {
		return "", errors.Wrapf(err, "failed to write key file %s", path)
	}

	logx.Info("KEYGEN", "Wrote identity ", id.String(), " to ", path)
	return id.String(), nil
}
