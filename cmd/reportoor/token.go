package main

import (
	"fmt"

	"github.com/ethpandaops/reportoor/pkg/query"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Encode and decode search state tokens",
}

var tokenEncodeCmd = &cobra.Command{
	Use:   "encode <query>",
	Short: "Encode a search state as a location token",
	Args:  cobra.ExactArgs(1),
	RunE:  runTokenEncode,
}

var tokenDecodeCmd = &cobra.Command{
	Use:   "decode <token>",
	Short: "Decode a location token",
	Args:  cobra.ExactArgs(1),
	RunE:  runTokenDecode,
}

var tokenMode string

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.AddCommand(tokenEncodeCmd, tokenDecodeCmd)
	tokenEncodeCmd.Flags().StringVar(&tokenMode, "mode", "text", "query mode (text, raw)")
}

func runTokenEncode(cmd *cobra.Command, args []string) error {
	mode, err := query.ParseMode(tokenMode)
	if err != nil {
		return err
	}

	state := query.SearchState{Query: args[0], Mode: mode}
	fmt.Fprintln(cmd.OutOrStdout(), state.Encode())

	return nil
}

func runTokenDecode(cmd *cobra.Command, args []string) error {
	state, err := query.Decode(args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "mode:  %s\nquery: %s\n", state.Mode, state.Query)

	return nil
}
