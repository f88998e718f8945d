package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"marketplace/internal/keygen"
)

func newGenkeyCommand() *cobra.Command {
	var dest string
	var length int

	cmd := &cobra.Command{
		Use:         "genkey",
		Short:       "Generate the in-app payment key file",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := keygen.Generate(dest, length); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote in-app payment key: %s\n", dest)
			return nil
		},
	}

	cmd.Flags().StringVar(&dest, "dest", keygen.DefaultDest, "Where to write the key file")
	cmd.Flags().IntVar(&length, "length", keygen.DefaultLength, "Key length in bytes")
	return cmd
}
